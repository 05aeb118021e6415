package binding

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/ValentinKolb/dBind/lib/codegen"
	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("binding")

// IService is the binding lifecycle as seen by a caller.
// It is implemented by *Service (on top of a store) and by the rpc client.
type IService interface {
	// New registers channelID for userID and issues a verification code.
	// Returns SENT, RESENT, INVALID_USER or INVALID_STATE.
	New(userID, channelID string) (Result, error)
	// Verify confirms a pending binding with its code.
	// Returns SUCCESS, INVALID_CODE, INVALID_USER or INVALID_STATE.
	Verify(userID, channelID, code string) (Result, error)
	// Update moves a verified binding from oldChannelID to newChannelID.
	// Returns SUCCESS, INVALID_USER, INVALID_STATE or NOT_FOUND.
	Update(userID, oldChannelID, newChannelID string) (Result, error)
	// Delete removes the binding of userID for channelID if there is one.
	Delete(userID, channelID string) error
	// Query returns the users of userIDs that own at least one binding of any status.
	Query(userIDs []string) ([]string, error)
}

// Service implements IService on top of a store.IStore.
// It holds no state of its own, all concurrency control is done with the
// conditional writes of the store.
type Service struct {
	store store.IStore
	codes codegen.Generator
}

// NewService creates a binding service. A nil generator selects codegen.New.
func NewService(s store.IStore, codes codegen.Generator) *Service {
	if codes == nil {
		codes = codegen.New
	}
	return &Service{
		store: s,
		codes: codes,
	}
}

func required(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return ErrInvalidArgument
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// new
// --------------------------------------------------------------------------

func (s *Service) New(userID, channelID string) (Result, error) {
	if err := required(userID, channelID); err != nil {
		return 0, err
	}

	rec, found, err := s.store.Get(channelID)
	if err != nil {
		return 0, fmt.Errorf("new: read %s: %w", channelID, err)
	}

	if !found {
		code, err := s.codes()
		if err != nil {
			return 0, fmt.Errorf("new: %w", err)
		}

		current, created, err := s.store.CreateIfAbsent(db.Record{
			ChannelID: channelID,
			UserID:    userID,
			Code:      code,
			Status:    db.StatusPending,
			CreatedAt: time.Now().UnixMilli(),
		})
		if err != nil {
			return 0, fmt.Errorf("new: create %s: %w", channelID, err)
		}
		if created {
			log.Debugf("new: channel %s bound to %s (pending)", channelID, userID)
			return ResultSent, nil
		}

		// lost the race, branch on the winner's record
		rec = current
	}

	return s.resend(userID, rec)
}

// resend reissues the code of a pending binding owned by userID
func (s *Service) resend(userID string, rec db.Record) (Result, error) {
	if rec.UserID != userID {
		return ResultInvalidUser, nil
	}
	if rec.IsVerified() {
		return ResultInvalidState, nil
	}

	code, err := s.codes()
	if err != nil {
		return 0, fmt.Errorf("new: %w", err)
	}

	next := rec
	next.Code = code
	_, swapped, err := s.store.CompareAndSwap(next, rec.Version)
	if err != nil {
		return 0, fmt.Errorf("new: reissue code for %s: %w", rec.ChannelID, err)
	}
	if !swapped {
		return 0, fmt.Errorf("new: reissue code for %s: %w", rec.ChannelID, ErrConflict)
	}

	log.Debugf("new: reissued code for channel %s", rec.ChannelID)
	return ResultResent, nil
}

// --------------------------------------------------------------------------
// verify
// --------------------------------------------------------------------------

func (s *Service) Verify(userID, channelID, code string) (Result, error) {
	if err := required(userID, channelID, code); err != nil {
		return 0, err
	}

	rec, found, err := s.store.Get(channelID)
	if err != nil {
		return 0, fmt.Errorf("verify: read %s: %w", channelID, err)
	}

	switch {
	case !found:
		return ResultInvalidState, nil
	case rec.UserID != userID:
		return ResultInvalidUser, nil
	case rec.IsVerified():
		return ResultInvalidState, nil
	case subtle.ConstantTimeCompare([]byte(code), []byte(rec.Code)) != 1:
		return ResultInvalidCode, nil
	}

	next := rec
	next.Status = db.StatusVerified
	next.Code = ""
	_, swapped, err := s.store.CompareAndSwap(next, rec.Version)
	if err != nil {
		return 0, fmt.Errorf("verify: write %s: %w", channelID, err)
	}
	if !swapped {
		return 0, fmt.Errorf("verify: write %s: %w", channelID, ErrConflict)
	}

	log.Debugf("verify: channel %s of %s verified", channelID, userID)
	return ResultSuccess, nil
}

// --------------------------------------------------------------------------
// update
// --------------------------------------------------------------------------

func (s *Service) Update(userID, oldChannelID, newChannelID string) (Result, error) {
	if err := required(userID, oldChannelID, newChannelID); err != nil {
		return 0, err
	}

	old, found, err := s.store.Get(oldChannelID)
	if err != nil {
		return 0, fmt.Errorf("update: read %s: %w", oldChannelID, err)
	}

	switch {
	case !found:
		return ResultNotFound, nil
	case old.UserID != userID:
		return ResultInvalidUser, nil
	case !old.IsVerified():
		return ResultInvalidState, nil
	case oldChannelID == newChannelID:
		// rename to self
		return ResultSuccess, nil
	}

	target, targetFound, err := s.store.Get(newChannelID)
	if err != nil {
		return 0, fmt.Errorf("update: read %s: %w", newChannelID, err)
	}
	if targetFound && target.UserID != userID {
		return ResultInvalidUser, nil
	}

	// remove the old binding first, a concurrent change to it aborts the rename
	deleted, err := s.store.CompareAndDelete(oldChannelID, old.Version)
	if err != nil {
		return 0, fmt.Errorf("update: delete %s: %w", oldChannelID, err)
	}
	if !deleted {
		return 0, fmt.Errorf("update: delete %s: %w", oldChannelID, ErrConflict)
	}

	moved := db.Record{
		ChannelID: newChannelID,
		UserID:    userID,
		Status:    db.StatusVerified,
		CreatedAt: old.CreatedAt,
	}
	res, err := s.claim(moved, target, targetFound)
	if err != nil || res != ResultSuccess {
		s.restore(old)
		if err != nil {
			return 0, fmt.Errorf("update: write %s: %w", newChannelID, err)
		}
		return res, nil
	}

	log.Debugf("update: binding of %s moved from %s to %s", userID, oldChannelID, newChannelID)
	return ResultSuccess, nil
}

// claim writes rec under its channel id unless the id is held by another user.
// observed/found is what the caller last saw under that id.
func (s *Service) claim(rec, observed db.Record, found bool) (Result, error) {
	if !found {
		current, created, err := s.store.CreateIfAbsent(rec)
		if err != nil {
			return 0, err
		}
		if created {
			return ResultSuccess, nil
		}
		observed = current
	}

	if observed.UserID != rec.UserID {
		return ResultInvalidUser, nil
	}

	_, swapped, err := s.store.CompareAndSwap(rec, observed.Version)
	if err != nil {
		return 0, err
	}
	if !swapped {
		return 0, ErrConflict
	}
	return ResultSuccess, nil
}

// restore puts back a binding removed by an update that could not complete
func (s *Service) restore(old db.Record) {
	if _, created, err := s.store.CreateIfAbsent(old); err != nil || !created {
		log.Warningf("update: could not restore binding %s of %s (created=%v, err=%v)", old.ChannelID, old.UserID, created, err)
	}
}

// --------------------------------------------------------------------------
// del
// --------------------------------------------------------------------------

func (s *Service) Delete(userID, channelID string) error {
	if err := required(userID, channelID); err != nil {
		return err
	}

	rec, found, err := s.store.Get(channelID)
	if err != nil {
		return fmt.Errorf("del: read %s: %w", channelID, err)
	}
	if !found || rec.UserID != userID {
		// nothing of this user to delete
		return nil
	}

	deleted, err := s.store.CompareAndDelete(channelID, rec.Version)
	if err != nil {
		return fmt.Errorf("del: delete %s: %w", channelID, err)
	}
	if deleted {
		log.Debugf("del: binding %s of %s removed", channelID, userID)
		return nil
	}

	// the record changed in between, it only matters if it still belongs to the user
	rec, found, err = s.store.Get(channelID)
	if err != nil {
		return fmt.Errorf("del: read %s: %w", channelID, err)
	}
	if !found || rec.UserID != userID {
		return nil
	}
	return fmt.Errorf("del: delete %s: %w", channelID, ErrConflict)
}

// --------------------------------------------------------------------------
// query
// --------------------------------------------------------------------------

func (s *Service) Query(userIDs []string) ([]string, error) {
	candidates := make([]string, 0, len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		return []string{}, nil
	}

	users, err := s.store.ListUsersWithBindings(candidates)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if users == nil {
		users = []string{}
	}
	return users, nil
}
