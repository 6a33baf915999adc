package broadcast_test

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
	"github.com/dmitrymomot/broadcaster/pkg/job"
)

// memStore is an in-memory broadcast.Store. It counts reads and writes so
// tests can assert that a path touched nothing.
type memStore struct {
	broadcasts map[int64]*broadcast.Broadcast
	contacts   map[int64]*broadcast.Contact
	emails     map[int64]*broadcast.Email
	tokens     map[string]*broadcast.UnsubscribeToken
	// tokenErr fails the next CreateEmailWithToken as a rolled back
	// transaction would.
	tokenErr   error
	reads      int
	writes     int
	nextEmail  int64
	mu         sync.Mutex
}

var _ broadcast.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		broadcasts: make(map[int64]*broadcast.Broadcast),
		contacts:   make(map[int64]*broadcast.Contact),
		emails:     make(map[int64]*broadcast.Email),
		tokens:     make(map[string]*broadcast.UnsubscribeToken),
	}
}

func (s *memStore) addBroadcast(b broadcast.Broadcast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts[b.ID] = &b
}

func (s *memStore) addContacts(from, to int64, optIn bool, tags ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := from; id <= to; id++ {
		s.contacts[id] = &broadcast.Contact{
			ID:         id,
			Email:      contactAddress(id),
			EmailOptIn: optIn,
			TagIDs:     tags,
		}
	}
}

func (s *memStore) broadcast(id int64) broadcast.Broadcast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.broadcasts[id]
}

func (s *memStore) contact(id int64) broadcast.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.contacts[id]
}

func (s *memStore) allEmails() []broadcast.Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]broadcast.Email, 0, len(s.emails))
	for _, id := range slices.Sorted(maps.Keys(s.emails)) {
		e := *s.emails[id]
		e.Activity = slices.Clone(e.Activity)
		out = append(out, e)
	}
	return out
}

func (s *memStore) counts() (reads, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes
}

func (s *memStore) OldestSending(_ context.Context) (*broadcast.Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	for _, id := range slices.Sorted(maps.Keys(s.broadcasts)) {
		if b := s.broadcasts[id]; b.Status == broadcast.StatusSending {
			out := *b
			return &out, nil
		}
	}
	return nil, broadcast.ErrBroadcastNotFound
}

func (s *memStore) GetBroadcast(_ context.Context, id int64) (*broadcast.Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	b, ok := s.broadcasts[id]
	if !ok {
		return nil, broadcast.ErrBroadcastNotFound
	}
	out := *b
	return &out, nil
}

func (s *memStore) TransitionBroadcast(_ context.Context, id int64, from, to broadcast.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return broadcast.ErrBroadcastNotFound
	}
	if b.Status != from {
		return broadcast.ErrInvalidStatus
	}
	s.writes++
	b.Status = to
	return nil
}

func (s *memStore) StartSending(_ context.Context, id int64, contactsCount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return broadcast.ErrBroadcastNotFound
	}
	if b.Status != broadcast.StatusDraft {
		return broadcast.ErrInvalidStatus
	}
	s.writes++
	b.Status = broadcast.StatusSending
	b.Meta = broadcast.Meta{ContactsCount: contactsCount}
	return nil
}

func (s *memStore) AdvanceCursor(_ context.Context, id, expected, next int64, processed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok || b.Status != broadcast.StatusSending || b.Meta.LastProcessedContactID != expected {
		return broadcast.ErrCursorConflict
	}
	s.writes++
	b.Meta.LastProcessedContactID = next
	b.Meta.ProcessedCount += int64(processed)
	return nil
}

func (s *memStore) matching(f broadcast.RecipientFilter) []*broadcast.Contact {
	var out []*broadcast.Contact
	for _, id := range slices.Sorted(maps.Keys(s.contacts)) {
		c := s.contacts[id]
		if !c.EmailOptIn || c.ID <= f.After {
			continue
		}
		if f.TagsOnly && !slices.ContainsFunc(c.TagIDs, func(t int64) bool { return slices.Contains(f.TagIDs, t) }) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *memStore) NextRecipients(_ context.Context, f broadcast.RecipientFilter, limit int) ([]broadcast.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	var out []broadcast.Contact
	for _, c := range s.matching(f) {
		if len(out) == limit {
			break
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *memStore) CountRecipients(_ context.Context, f broadcast.RecipientFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return int64(len(s.matching(f))), nil
}

func (s *memStore) GetContact(_ context.Context, id int64) (*broadcast.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	c, ok := s.contacts[id]
	if !ok {
		return nil, broadcast.ErrContactNotFound
	}
	out := *c
	return &out, nil
}

func (s *memStore) FindContactByEmail(_ context.Context, address string) (*broadcast.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	for _, c := range s.contacts {
		if c.Email == address {
			out := *c
			return &out, nil
		}
	}
	return nil, broadcast.ErrContactNotFound
}

func (s *memStore) SetEmailOptIn(_ context.Context, id int64, optIn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return broadcast.ErrContactNotFound
	}
	s.writes++
	c.EmailOptIn = optIn
	return nil
}

func (s *memStore) FindEmail(_ context.Context, broadcastID, contactID int64) (*broadcast.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	for _, e := range s.emails {
		if e.BroadcastID == broadcastID && e.ContactID == contactID {
			out := *e
			return &out, nil
		}
	}
	return nil, broadcast.ErrEmailNotFound
}

// CreateEmail seeds an email without a token record.
func (s *memStore) CreateEmail(_ context.Context, e *broadcast.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertEmail(e)
}

func (s *memStore) CreateEmailWithToken(_ context.Context, e *broadcast.Email, t *broadcast.UnsubscribeToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tokenErr; err != nil {
		s.tokenErr = nil
		return err
	}
	if err := s.insertEmail(e); err != nil {
		return err
	}
	t.EmailID = e.ID
	s.writes++
	stored := *t
	s.tokens[t.ID] = &stored
	return nil
}

func (s *memStore) failNextToken(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenErr = err
}

func (s *memStore) insertEmail(e *broadcast.Email) error {
	for _, existing := range s.emails {
		if existing.BroadcastID == e.BroadcastID && existing.ContactID == e.ContactID {
			return broadcast.ErrDuplicateEmail
		}
	}
	s.writes++
	s.nextEmail++
	e.ID = s.nextEmail
	stored := *e
	s.emails[e.ID] = &stored
	return nil
}

func (s *memStore) GetEmail(_ context.Context, id int64) (*broadcast.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	e, ok := s.emails[id]
	if !ok {
		return nil, broadcast.ErrEmailNotFound
	}
	out := *e
	return &out, nil
}

func (s *memStore) FindEmailByProviderID(_ context.Context, providerID string) (*broadcast.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	for _, e := range s.emails {
		if e.ProviderID == providerID {
			out := *e
			return &out, nil
		}
	}
	return nil, broadcast.ErrEmailNotFound
}

func (s *memStore) MarkEmailSent(_ context.Context, id int64, providerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.emails[id]
	if !ok {
		return broadcast.ErrEmailNotFound
	}
	s.writes++
	e.ProviderID = providerID
	e.SentAt = &at
	e.ApplyActivity(broadcast.Activity{Type: broadcast.ActivitySent, Timestamp: at})
	return nil
}

func (s *memStore) MarkEmailFailed(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.emails[id]
	if !ok {
		return broadcast.ErrEmailNotFound
	}
	s.writes++
	e.Activity = append(e.Activity, broadcast.Activity{Type: broadcast.ActivityFailed, Timestamp: at})
	e.Status = broadcast.EmailFailed
	return nil
}

func (s *memStore) AppendActivity(_ context.Context, id int64, a broadcast.Activity) (broadcast.EmailStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.emails[id]
	if !ok {
		return "", broadcast.ErrEmailNotFound
	}
	s.writes++
	e.ApplyActivity(a)
	return e.Status, nil
}

// CreateUnsubscribeToken seeds a token record.
func (s *memStore) CreateUnsubscribeToken(_ context.Context, t *broadcast.UnsubscribeToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	stored := *t
	s.tokens[t.ID] = &stored
	return nil
}

func (s *memStore) GetUnsubscribeToken(_ context.Context, id string) (*broadcast.UnsubscribeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	t, ok := s.tokens[id]
	if !ok {
		return nil, broadcast.ErrTokenNotFound
	}
	out := *t
	return &out, nil
}

// recordingQueue captures enqueued send-email payloads.
type recordingQueue struct {
	err   error
	calls []broadcast.SendEmailInput
	mu    sync.Mutex
}

func (q *recordingQueue) Enqueue(_ context.Context, name string, payload any, _ ...job.EnqueueOption) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if name == broadcast.TaskSendEmail {
		q.calls = append(q.calls, payload.(broadcast.SendEmailInput))
	}
	return nil
}

func (q *recordingQueue) contactIDs() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]int64, 0, len(q.calls))
	for _, c := range q.calls {
		ids = append(ids, c.ContactID)
	}
	slices.Sort(ids)
	return ids
}

func (q *recordingQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = nil
}

func contactAddress(id int64) string {
	return "contact" + strconv.FormatInt(id, 10) + "@example.com"
}
