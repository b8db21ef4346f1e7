package strata

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// frameStats holds per-frame timing and counts. Metrics always receive them;
// the debug log only when the World runs in debug mode.
type frameStats struct {
	behaviorTime  time.Duration
	physicsTime   time.Duration
	drainTime     time.Duration
	eventsDrained int
	entities      int
	pending       int
}

// debugFrame logs frame stats and panics when the World fails validation.
func (w *World) debugFrame(stats frameStats) {
	w.log.Debug("frame",
		zap.Uint64("frame", w.frame),
		zap.Float64("now", w.now),
		zap.Duration("behaviors", stats.behaviorTime),
		zap.Duration("physics", stats.physicsTime),
		zap.Duration("events", stats.drainTime),
		zap.Int("events_drained", stats.eventsDrained),
		zap.Int("events_pending", stats.pending),
		zap.Int("entities", stats.entities),
	)
	if err := w.Validate(); err != nil {
		panic(fmt.Sprintf("strata debug: frame %d: %v", w.frame, err))
	}
	for _, l := range w.layers {
		debugCheckLayerLoad(w.log, l)
	}
}

// debugMaxDirect is the number of objects owned directly by a single node
// above which the debug log warns that the tree is too shallow.
const debugMaxDirect = 256

func debugCheckLayerLoad(log *zap.Logger, l *ObjectLayer) {
	l.root.Walk(func(n *SpatialNode) bool {
		if n.count == 0 {
			return false
		}
		if len(n.objects) > debugMaxDirect {
			log.Warn("crowded tree node",
				zap.String("layer", l.Name),
				zap.Ints("path", n.Path()),
				zap.Int("direct", len(n.objects)),
				zap.Int("threshold", debugMaxDirect),
			)
		}
		return true
	})
}

// countStateChanges counts adjacent draw items whose render state differs:
// the number of batches a renderer would need for items.
func countStateChanges(items []DrawItem) int {
	if len(items) == 0 {
		return 0
	}
	count := 1
	prev := items[0].stateKey()
	for i := 1; i < len(items); i++ {
		cur := items[i].stateKey()
		if cur != prev {
			count++
			prev = cur
		}
	}
	return count
}
