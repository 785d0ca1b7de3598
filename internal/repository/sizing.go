package repository

import (
	"sync/atomic"

	"ExecCore/internal/domain/models"
	domrepo "ExecCore/internal/domain/repository"
)

// SizingSlot holds the most recent sizing snapshot. Last writer wins.
type SizingSlot struct {
	v atomic.Pointer[models.SizingSnapshot]
}

func NewSizingSlot() *SizingSlot { return &SizingSlot{} }

func (s *SizingSlot) Store(snap models.SizingSnapshot) {
	s.v.Store(&snap)
}

func (s *SizingSlot) Last() (models.SizingSnapshot, bool) {
	p := s.v.Load()
	if p == nil {
		return models.SizingSnapshot{}, false
	}
	return *p, true
}

var _ domrepo.SizingStore = (*SizingSlot)(nil)
