package narrative

import (
	"fmt"
	"sync/atomic"
	"time"
)

// sceneSeq is shared by every parser in the process so ids stay unique even
// when two generations finish within the same millisecond.
var sceneSeq atomic.Uint64

func nextSceneID(now time.Time) string {
	return fmt.Sprintf("ai-scene-%d-%d", now.UnixMilli(), sceneSeq.Add(1))
}
