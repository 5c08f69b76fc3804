package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stillpoint/mentor-backend/internal/shared"
)

// Service owns the session lifecycle outside the dialogue loop: issuing
// ids, tracking liveness, and archiving ended sessions. The archive is
// optional; without it listRecent only sees nothing and ends still clear
// the live entry.
type Service struct {
	live    LiveStore
	archive *Archive
	log     *slog.Logger
}

func NewService(live LiveStore, archive *Archive, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{live: live, archive: archive, log: log}
}

// Start registers a new session and returns its record. The id is a
// fresh UUID the client presents when it opens the audio socket.
func (s *Service) Start(ctx context.Context) (*Record, error) {
	rec := &Record{ID: uuid.New().String()}
	if err := s.live.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info("session registered", "session_id", rec.ID)
	return rec, nil
}

// Adopt resolves an id presented at socket-connect time. Unknown ids get
// a fresh record so a client that skipped the start call still works.
func (s *Service) Adopt(ctx context.Context, id string) (*Record, error) {
	rec, err := s.live.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	rec = &Record{ID: id}
	if err := s.live.Create(ctx, rec); err != nil {
		// A concurrent connect won the create; their record serves.
		if errors.Is(err, shared.ErrConflict) {
			return s.live.Get(ctx, id)
		}
		return nil, err
	}
	s.log.Info("session adopted at connect", "session_id", id)
	return rec, nil
}

// End closes out a session: archive the row, drop the live entry. Ending
// an unknown or already-ended session is a no-op, so retries and the
// HTTP-end racing the socket-close are both safe.
func (s *Service) End(ctx context.Context, id string, turns int) error {
	rec, err := s.live.Get(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if turns < rec.TurnCount {
		turns = rec.TurnCount
	}

	if s.archive != nil {
		row := &Archived{
			ID:        rec.ID,
			StartedAt: rec.StartedAt,
			EndedAt:   time.Now(),
			TurnCount: turns,
		}
		if err := s.archive.Save(ctx, row); err != nil {
			s.log.Error("failed to archive session", "session_id", id, "error", err)
		}
	}

	if err := s.live.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("session ended", "session_id", id, "turns", turns)
	return nil
}

// Touch bumps the live entry's activity timestamp and turn count.
func (s *Service) Touch(ctx context.Context, id string, turns int) error {
	rec, err := s.live.Get(ctx, id)
	if err != nil {
		return err
	}
	if turns > rec.TurnCount {
		rec.TurnCount = turns
	}
	return s.live.Update(ctx, rec)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]*Archived, error) {
	if s.archive == nil {
		return []*Archived{}, nil
	}
	return s.archive.Recent(ctx, limit)
}

func (s *Service) ActiveCount(ctx context.Context) (int, error) {
	records, err := s.live.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
