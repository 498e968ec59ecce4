package service

import (
	coreEntity "classroom-api/core/entity"
	"classroom-api/core/params"
	authEntity "classroom-api/modules/auth/entity"
	calendarEntity "classroom-api/modules/calendar/entity"
	calendarService "classroom-api/modules/calendar/service"
	chatTasks "classroom-api/modules/chat/tasks"
	"classroom-api/modules/classes/entity"
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore keeps rows in maps. RunInTransaction works on a copy and only
// swaps it in when fn succeeds.
type memStore struct {
	mu      sync.Mutex
	groups  map[uuid.UUID]entity.RecurrenceGroup
	classes map[uuid.UUID]entity.ClassInstance
	regs    map[uuid.UUID][]entity.Registration

	createInstancesErr error
	registerUsersErr   error
}

func newMemStore() *memStore {
	return &memStore{
		groups:  map[uuid.UUID]entity.RecurrenceGroup{},
		classes: map[uuid.UUID]entity.ClassInstance{},
		regs:    map[uuid.UUID][]entity.Registration{},
	}
}

type memTx struct {
	store   *memStore
	groups  map[uuid.UUID]entity.RecurrenceGroup
	classes map[uuid.UUID]entity.ClassInstance
	regs    map[uuid.UUID][]entity.Registration
}

func (s *memStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx ClassTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:   s,
		groups:  maps.Clone(s.groups),
		classes: maps.Clone(s.classes),
		regs:    map[uuid.UUID][]entity.Registration{},
	}
	for id, r := range s.regs {
		tx.regs[id] = slices.Clone(r)
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.groups, s.classes, s.regs = tx.groups, tx.classes, tx.regs
	return nil
}

func (t *memTx) LockGroup(_ context.Context, id uuid.UUID) (*entity.RecurrenceGroup, error) {
	g, ok := t.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (t *memTx) LockInstance(_ context.Context, id uuid.UUID) (*entity.ClassInstance, error) {
	c, ok := t.classes[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *memTx) CreateGroup(_ context.Context, group *entity.RecurrenceGroup) error {
	group.ID = uuid.New()
	group.CreatedAt = time.Now()
	group.UpdatedAt = group.CreatedAt
	t.groups[group.ID] = *group
	return nil
}

func (t *memTx) CreateInstances(_ context.Context, instances []entity.ClassInstance) error {
	for i := range instances {
		if t.store.createInstancesErr != nil && i == len(instances)-1 {
			return t.store.createInstancesErr
		}
		instances[i].ID = uuid.New()
		instances[i].CreatedAt = time.Now()
		instances[i].UpdatedAt = instances[i].CreatedAt
		row := instances[i]
		row.Registrations = nil
		t.classes[row.ID] = row
	}
	return nil
}

func (t *memTx) DeleteInstancesByGroup(_ context.Context, groupID uuid.UUID) (int64, error) {
	var n int64
	for id, c := range t.classes {
		if c.RecurringID != nil && *c.RecurringID == groupID {
			delete(t.classes, id)
			delete(t.regs, id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.groups[id]; !ok {
		return sql.ErrNoRows
	}
	delete(t.groups, id)
	_, err := t.DeleteInstancesByGroup(ctx, id)
	return err
}

func (t *memTx) UpdateInstance(_ context.Context, class *entity.ClassInstance) error {
	if _, ok := t.classes[class.ID]; !ok {
		return sql.ErrNoRows
	}
	row := *class
	row.Registrations = nil
	row.UpdatedAt = time.Now()
	t.classes[class.ID] = row
	return nil
}

func (t *memTx) DeleteInstance(_ context.Context, id uuid.UUID) error {
	if _, ok := t.classes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(t.classes, id)
	delete(t.regs, id)
	return nil
}

func (t *memTx) CountRegistrations(_ context.Context, classID uuid.UUID) (int, error) {
	return len(t.regs[classID]), nil
}

func (t *memTx) AddRegistration(_ context.Context, classID, userID uuid.UUID) (bool, error) {
	for _, r := range t.regs[classID] {
		if r.UserID == userID {
			return false, nil
		}
	}
	t.regs[classID] = append(t.regs[classID], entity.Registration{UserID: userID, ClassID: classID, RegisteredAt: time.Now()})
	return true, nil
}

func (s *memStore) withRegistrations(c entity.ClassInstance) entity.ClassInstance {
	c.Registrations = slices.Clone(s.regs[c.ID])
	return c
}

func (s *memStore) FindInstanceByID(_ context.Context, id uuid.UUID) (*entity.ClassInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classes[id]
	if !ok {
		return nil, nil
	}
	c = s.withRegistrations(c)
	return &c, nil
}

func (s *memStore) sorted(keep func(entity.ClassInstance) bool) []entity.ClassInstance {
	var out []entity.ClassInstance
	for _, c := range s.classes {
		if keep(c) {
			out = append(out, s.withRegistrations(c))
		}
	}
	slices.SortFunc(out, func(a, b entity.ClassInstance) int { return a.StartTime.Compare(b.StartTime) })
	return out
}

func (s *memStore) FindInstancesByGroupID(_ context.Context, groupID uuid.UUID) ([]entity.ClassInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(c entity.ClassInstance) bool {
		return c.RecurringID != nil && *c.RecurringID == groupID
	}), nil
}

func (s *memStore) FindGroupByID(_ context.Context, id uuid.UUID) (*entity.RecurrenceGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (s *memStore) ListUpcoming(_ context.Context, from time.Time, p params.QueryParams) (*coreEntity.Pagination[entity.ClassInstance], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sorted(func(c entity.ClassInstance) bool {
		return !c.EndTime.Before(from) && strings.Contains(strings.ToLower(c.Title), strings.ToLower(p.Search))
	})
	start := min(p.Offset(), len(all))
	end := min(start+p.PageSize, len(all))
	return &coreEntity.Pagination[entity.ClassInstance]{
		Items:      all[start:end],
		TotalItems: len(all),
		TotalPages: (len(all) + p.PageSize - 1) / p.PageSize,
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
	}, nil
}

func (s *memStore) FindStartingBetween(_ context.Context, from, to time.Time) ([]entity.ClassInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(c entity.ClassInstance) bool {
		return !c.StartTime.Before(from) && c.StartTime.Before(to)
	}), nil
}

func (s *memStore) FindEndingBetween(_ context.Context, from, to time.Time) ([]entity.ClassInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(c entity.ClassInstance) bool {
		return !c.EndTime.Before(from) && c.EndTime.Before(to)
	}), nil
}

func (s *memStore) RegisterUsers(ctx context.Context, classIDs, userIDs []uuid.UUID) error {
	if s.registerUsersErr != nil {
		return s.registerUsersErr
	}
	return s.RunInTransaction(ctx, func(ctx context.Context, tx ClassTx) error {
		for _, classID := range classIDs {
			for _, userID := range userIDs {
				if _, err := tx.AddRegistration(ctx, classID, userID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *memStore) UnregisterUser(_ context.Context, classID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	regs := s.regs[classID]
	i := slices.IndexFunc(regs, func(r entity.Registration) bool { return r.UserID == userID })
	if i < 0 {
		return false, nil
	}
	s.regs[classID] = slices.Delete(regs, i, i+1)
	return true, nil
}

func (s *memStore) classCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.classes)
}

func (s *memStore) groupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups)
}

// fakeCalendar stores events and expands recurring ones with the same rule
// code the gateway sends to Google.
type fakeCalendar struct {
	mu      sync.Mutex
	seq     int
	events  map[string]*calendarEntity.CalendarEvent
	rules   map[string]*calendarEntity.RecurrenceRule
	deleted []string
	patches map[string]calendarEntity.EventPatch

	createErr error
	deleteErr error
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		events:  map[string]*calendarEntity.CalendarEvent{},
		rules:   map[string]*calendarEntity.RecurrenceRule{},
		patches: map[string]calendarEntity.EventPatch{},
	}
}

func (f *fakeCalendar) CreateEvent(_ context.Context, details calendarEntity.EventDetails, organizer calendarEntity.Person) (*calendarEntity.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	ev := &calendarEntity.CalendarEvent{
		ID:          fmt.Sprintf("evt%d", f.seq),
		Title:       details.Title,
		Description: details.Description,
		Start:       details.Start,
		End:         details.End,
		MeetLink:    fmt.Sprintf("abc-defg-%03d", f.seq),
		Organizer:   organizer,
		Attendees:   append([]string{organizer.Email}, details.Attendees...),
	}
	if details.Rule != nil {
		line, err := calendarService.BuildRRule(details.Rule)
		if err != nil {
			return nil, err
		}
		ev.Recurrence = []string{line}
		f.rules[ev.ID] = details.Rule
	}
	f.events[ev.ID] = ev
	return ev, nil
}

func (f *fakeCalendar) PatchEvent(_ context.Context, eventID string, patch calendarEntity.EventPatch) (*calendarEntity.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches[eventID] = patch
	ev, ok := f.events[eventID]
	if !ok {
		ev = &calendarEntity.CalendarEvent{ID: eventID}
	}
	return ev, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, eventID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.events, eventID)
	return nil
}

func (f *fakeCalendar) ListInstances(_ context.Context, rootEventID string) ([]calendarEntity.EventInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	root, ok := f.events[rootEventID]
	if !ok {
		return nil, fmt.Errorf("event %s not found", rootEventID)
	}
	starts, err := calendarService.ExpectedOccurrences(f.rules[rootEventID], root.Start)
	if err != nil {
		return nil, err
	}
	duration := root.End.Sub(root.Start)
	out := make([]calendarEntity.EventInstance, 0, len(starts))
	for _, s := range starts {
		out = append(out, calendarEntity.EventInstance{
			ID:    rootEventID + "_" + s.UTC().Format("20060102T150405Z"),
			Start: s,
			End:   s.Add(duration),
		})
	}
	return out, nil
}

func (f *fakeCalendar) exists(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.events[id]
	return ok
}

type fakeIdentity struct {
	users map[uuid.UUID]authEntity.User
}

func newFakeIdentity(users ...authEntity.User) *fakeIdentity {
	f := &fakeIdentity{users: map[uuid.UUID]authEntity.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeIdentity) FindByID(_ context.Context, id uuid.UUID) (*authEntity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeIdentity) FindByIDs(_ context.Context, ids []uuid.UUID) ([]authEntity.User, error) {
	var out []authEntity.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeChat struct {
	mu       sync.Mutex
	rooms    []string
	added    map[string][]uuid.UUID
	welcomed []uuid.UUID
	notices  []string
	roomErr  error
	sendErr  error
}

func newFakeChat() *fakeChat {
	return &fakeChat{added: map[string][]uuid.UUID{}}
}

func (f *fakeChat) CreateRoom(_ context.Context, title, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roomErr != nil {
		return "", f.roomErr
	}
	id := fmt.Sprintf("!room%d:example.org", len(f.rooms)+1)
	f.rooms = append(f.rooms, title)
	return id, nil
}

func (f *fakeChat) AddUsers(_ context.Context, roomID string, userIDs ...uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added[roomID] = append(f.added[roomID], userIDs...)
	return nil
}

func (f *fakeChat) SendWelcomeMessage(_ context.Context, _ string, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcomed = append(f.welcomed, userID)
	return nil
}

func (f *fakeChat) SendClassReminder(_ context.Context, notice chatTasks.ClassNoticePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.notices = append(f.notices, "reminder:"+notice.ClassID.String())
	return nil
}

func (f *fakeChat) SendClassFeedback(_ context.Context, notice chatTasks.ClassNoticePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.notices = append(f.notices, "feedback:"+notice.ClassID.String())
	return nil
}

type fakePublisher struct {
	groups []uuid.UUID
}

func (f *fakePublisher) PublishSeries(_ context.Context, groupID uuid.UUID) error {
	f.groups = append(f.groups, groupID)
	return nil
}
