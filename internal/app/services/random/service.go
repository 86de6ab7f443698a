package random

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/random"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// Drawer picks an outcome index from a weight table.
type Drawer interface {
	Draw(ctx context.Context, weights domain.Weights) (int, error)
}

// Service draws outcomes from a cryptographically secure source.
type Service struct {
	log    *logger.Logger
	reader io.Reader
}

// Option customises the service.
type Option func(*Service)

// WithReader replaces crypto/rand as the entropy source.
func WithReader(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.reader = r
		}
	}
}

// New constructs a random service.
func New(log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("random")
	}
	s := &Service{log: log, reader: rand.Reader}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Draw returns index i with probability weights[i]/total, sampled without
// modulo bias.
func (s *Service) Draw(ctx context.Context, weights domain.Weights) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := weights.Validate(); err != nil {
		return 0, err
	}
	total := new(big.Int).SetUint64(weights.Total())
	n, err := rand.Int(s.reader, total)
	if err != nil {
		return 0, fmt.Errorf("read randomness: %w", err)
	}
	idx := weights.Pick(n.Uint64())
	s.log.Debugf("drew outcome %d of %d", idx, len(weights))
	return idx, nil
}

// Sequence is a deterministic Drawer that replays fixed outcomes in order,
// wrapping around at the end. Outcomes out of range are clamped.
type Sequence struct {
	Outcomes []int
	next     int
}

// Draw returns the next scripted outcome.
func (q *Sequence) Draw(ctx context.Context, weights domain.Weights) (int, error) {
	if err := weights.Validate(); err != nil {
		return 0, err
	}
	if len(q.Outcomes) == 0 {
		return 0, nil
	}
	idx := q.Outcomes[q.next%len(q.Outcomes)]
	q.next++
	if idx < 0 {
		idx = 0
	}
	if idx >= len(weights) {
		idx = len(weights) - 1
	}
	return idx, nil
}
