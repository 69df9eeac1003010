package handoff

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sorenh/handoff-bot/internal/models"
)

// MemoryStore is the volatile Store implementation. A single mutex
// guards every record; mutation rate is one message per turn, so there
// is no need for anything finer grained.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	// admissionSeq breaks QueueTime ties so that two users queued
	// within the same clock tick keep their admission order.
	admissionSeq map[string]uint64
	nextSeq      uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]*models.User),
		admissionSeq: make(map[string]uint64),
	}
}

func (s *MemoryStore) FindOrCreate(_ context.Context, userRef models.ConversationRef) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOrCreateLocked(userRef).Clone(), nil
}

func (s *MemoryStore) findOrCreateLocked(userRef models.ConversationRef) *models.User {
	if user, ok := s.users[userRef.ID]; ok {
		return user
	}
	user := &models.User{
		UserRef:  userRef,
		State:    models.StateBot,
		Messages: []models.Activity{},
	}
	s.users[userRef.ID] = user
	return user
}

func (s *MemoryStore) FindByAgent(_ context.Context, agentRef models.ConversationRef) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user := s.findByAgentLocked(agentRef); user != nil {
		return user.Clone(), nil
	}
	return nil, nil
}

func (s *MemoryStore) findByAgentLocked(agentRef models.ConversationRef) *models.User {
	for _, user := range s.users {
		if !user.AgentRef.IsZero() && user.AgentRef.Equal(agentRef) {
			return user
		}
	}
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, userRef models.ConversationRef, activity models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.findOrCreateLocked(userRef)
	user.Messages = append(user.Messages, activity)
	return nil
}

func (s *MemoryStore) Queue(_ context.Context, userRef models.ConversationRef) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.findOrCreateLocked(userRef)
	user.State = models.StateQueued
	user.QueueTime = time.Now()
	user.AgentRef = models.ConversationRef{}
	s.nextSeq++
	s.admissionSeq[userRef.ID] = s.nextSeq
	return user.Clone(), nil
}

func (s *MemoryStore) Dequeue(_ context.Context, userRef models.ConversationRef) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.findOrCreateLocked(userRef)
	user.State = models.StateBot
	user.QueueTime = time.Time{}
	user.AgentRef = models.ConversationRef{}
	delete(s.admissionSeq, userRef.ID)
	return user.Clone(), nil
}

func (s *MemoryStore) Connect(_ context.Context, agentRef models.ConversationRef) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queueLocked()
	if len(queue) == 0 {
		return nil, nil
	}
	user := queue[0]
	user.State = models.StateAgent
	user.AgentRef = agentRef
	user.QueueTime = time.Time{}
	delete(s.admissionSeq, user.UserRef.ID)
	return user.Clone(), nil
}

func (s *MemoryStore) Disconnect(_ context.Context, agentRef models.ConversationRef) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.findByAgentLocked(agentRef)
	if user == nil {
		return nil, nil
	}
	user.State = models.StateBot
	user.AgentRef = models.ConversationRef{}
	user.QueueTime = time.Time{}
	return user.Clone(), nil
}

func (s *MemoryStore) QueueSnapshot(_ context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queueLocked()
	out := make([]*models.User, len(queue))
	for i, user := range queue {
		out[i] = user.Clone()
	}
	return out, nil
}

// queueLocked returns live queued records ordered by admission time,
// ties broken by admission sequence. Caller must hold the lock.
func (s *MemoryStore) queueLocked() []*models.User {
	var queue []*models.User
	for _, user := range s.users {
		if user.State == models.StateQueued {
			queue = append(queue, user)
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if !a.QueueTime.Equal(b.QueueTime) {
			return a.QueueTime.Before(b.QueueTime)
		}
		return s.admissionSeq[a.UserRef.ID] < s.admissionSeq[b.UserRef.ID]
	})
	return queue
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
