package check

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/okian/tempoguard/internal/config"
	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/ring"
)

// Duplication flags replayed action sequences. Every action becomes a token of
// (action, slot, quantized gap, quantized cooldown); the latest tokens form an n-gram
// whose fingerprint is remembered in a per-participant Bloom filter. Humans almost never
// repeat an n-gram at millisecond granularity; macros do.
type Duplication struct {
	weight   float64
	seqLen   int
	bucket   int64
	capacity uint
	fpRate   float64
	grace    int
}

type duplicationScratch struct {
	tokens   *ring.Ring[uint64]
	filter   *bloom.BloomFilter
	inserted uint
	seen     int
	prevTs   int64
	hasPrev  bool
	key      [8]byte
	tokenBuf [8]byte
}

// NewDuplication builds the check from configuration.
func NewDuplication(cfg config.CheckConfig) *Duplication {
	bucket := int64(cfg.Param("bucket_ms", 5) * float64(time.Millisecond))
	if bucket <= 0 {
		bucket = int64(time.Millisecond)
	}
	capacity := uint(cfg.Param("filter_capacity", 256))
	if capacity == 0 {
		capacity = 256
	}
	return &Duplication{
		weight:   cfg.Weight,
		seqLen:   int(cfg.Param("sequence_length", 4)),
		bucket:   bucket,
		capacity: capacity,
		fpRate:   cfg.Param("false_positive_rate", 0.001),
		grace:    cfg.GracePeriodSamples,
	}
}

func (c *Duplication) ID() string { return config.CheckDuplication }

func (c *Duplication) InterestedEventTypes() []model.EventType {
	return []model.EventType{model.ActionPerformed}
}

func (c *Duplication) newScratch() *duplicationScratch {
	return &duplicationScratch{
		tokens: ring.New[uint64](c.seqLen),
		filter: bloom.NewWithEstimates(c.capacity, c.fpRate),
	}
}

func (c *Duplication) Evaluate(ev model.ParticipantEvent, view View) model.ScoreDelta {
	s := ScratchOf(view, c.newScratch)

	var gap int64
	if s.hasPrev {
		gap = ev.ServerTimestampNanos - s.prevTs
	}
	s.prevTs, s.hasPrev = ev.ServerTimestampNanos, true
	s.seen++

	s.tokens.Push(c.token(s, ev.Payload, gap))
	if !s.tokens.Full() {
		return model.ScoreDelta{}
	}

	binary.LittleEndian.PutUint64(s.key[:], c.fingerprint(s))
	if s.inserted >= c.capacity {
		s.filter.ClearAll()
		s.inserted = 0
	}

	repeated := s.filter.TestAndAdd(s.key[:])
	if !repeated {
		s.inserted++
	}
	if !repeated || s.seen < c.grace {
		return model.ScoreDelta{}
	}

	confidence := 1 - c.fpRate
	return model.ScoreDelta{
		Amount:     c.weight * confidence,
		Confidence: confidence,
		Evidence: fmt.Sprintf("action=%s repeated %d-gram gap=%s",
			ev.Payload.Action, c.seqLen, time.Duration(gap).Truncate(time.Millisecond)),
	}
}

func (c *Duplication) token(s *duplicationScratch, p model.Payload, gap int64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(p.Action))
	binary.LittleEndian.PutUint64(s.tokenBuf[:], uint64(p.Slot))
	_, _ = h.Write(s.tokenBuf[:])
	binary.LittleEndian.PutUint64(s.tokenBuf[:], uint64(gap/c.bucket))
	_, _ = h.Write(s.tokenBuf[:])
	binary.LittleEndian.PutUint64(s.tokenBuf[:], uint64(p.CooldownRemainingNanos/c.bucket))
	_, _ = h.Write(s.tokenBuf[:])
	return h.Sum64()
}

func (c *Duplication) fingerprint(s *duplicationScratch) uint64 {
	h := fnv.New64a()
	for i := 0; i < s.tokens.Len(); i++ {
		binary.LittleEndian.PutUint64(s.tokenBuf[:], s.tokens.At(i))
		_, _ = h.Write(s.tokenBuf[:])
	}
	return h.Sum64()
}
