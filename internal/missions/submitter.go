package missions

import (
	"context"

	"github.com/google/uuid"

	"github.com/vivarium-collective/vivarium/internal/store"
)

// StoreSubmitter persists proposals into the control-plane store. When
// autoApprove is set, accepted proposals skip the proposed state and gain a
// mission id immediately.
type StoreSubmitter struct {
	store       *store.Store
	autoApprove bool
}

func NewStoreSubmitter(st *store.Store, autoApprove bool) *StoreSubmitter {
	return &StoreSubmitter{store: st, autoApprove: autoApprove}
}

func (s *StoreSubmitter) SubmitProposal(ctx context.Context, agentID, title, description string, steps []store.MissionStep, source, sourceTraceID string) (*SubmitResult, error) {
	p := &store.MissionProposal{
		ID:          uuid.NewString(),
		ProposerID:  agentID,
		Title:       title,
		Description: description,
		Steps:       steps,
		Status:      store.ProposalProposed,
		SourceID:    sourceTraceID,
	}
	if _, err := s.store.InsertProposal(p); err != nil {
		return nil, err
	}
	res := &SubmitResult{Success: true, ProposalID: p.ID}
	if s.autoApprove {
		if ok, err := s.store.UpdateProposalStatus(p.ID, store.ProposalProposed, store.ProposalApproved); err == nil && ok {
			res.MissionID = uuid.NewString()
		}
	}
	return res, nil
}
