package service

import (
	"bytes"
	coreEntity "classroom-api/core/entity"
	"classroom-api/core/errors"
	"classroom-api/core/logger"
	"classroom-api/core/params"
	authEntity "classroom-api/modules/auth/entity"
	calendarEntity "classroom-api/modules/calendar/entity"
	calendarService "classroom-api/modules/calendar/service"
	"classroom-api/modules/classes/dto"
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	testNow     = time.Date(2023, 12, 20, 9, 0, 0, 0, time.UTC)
	seriesStart = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) // Monday

	facilitatorUser = authEntity.User{
		Name:       "Asha Rao",
		Email:      "asha@example.org",
		BaseEntity: coreEntity.BaseEntity{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111")},
	}
	learnerUser = authEntity.User{
		Name:       "Ravi Kumar",
		Email:      "ravi@example.org",
		BaseEntity: coreEntity.BaseEntity{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222")},
	}
	secondLearner = authEntity.User{
		Name:       "Meena Iyer",
		Email:      "meena@example.org",
		BaseEntity: coreEntity.BaseEntity{ID: uuid.MustParse("33333333-3333-3333-3333-333333333333")},
	}
	adminUser = authEntity.User{
		Name:       "Ops",
		Email:      "ops@example.org",
		Roles:      pq.StringArray{"admin"},
		BaseEntity: coreEntity.BaseEntity{ID: uuid.MustParse("44444444-4444-4444-4444-444444444444")},
	}
)

type harness struct {
	svc   *ClassService
	store *memStore
	cal   *fakeCalendar
	chat  *fakeChat
	pub   *fakePublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: newMemStore(),
		cal:   newFakeCalendar(),
		chat:  newFakeChat(),
		pub:   &fakePublisher{},
	}
	h.svc = NewClassService(Dependencies{
		Store:     h.store,
		Gateway:   h.cal,
		Expander:  calendarService.NewRecurrenceExpander(h.cal),
		Identity:  newFakeIdentity(facilitatorUser, learnerUser, secondLearner, adminUser),
		Chat:      h.chat,
		Publisher: h.pub,
	})
	h.svc.now = func() time.Time { return testNow }
	return h
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func classRequest() *dto.ClassRequest {
	return &dto.ClassRequest{
		Title:       "Intro to Go",
		Description: "Types, slices and maps",
		Type:        "workshop",
		StartTime:   seriesStart,
		EndTime:     seriesStart.Add(time.Hour),
	}
}

func weeklyRule() *calendarEntity.RecurrenceRule {
	return &calendarEntity.RecurrenceRule{
		Frequency:  calendarEntity.FrequencyWeekly,
		OnDays:     []string{"MO", "WE"},
		Occurrence: intPtr(4),
	}
}

func (h *harness) createSeries(t *testing.T) *dto.SeriesResponse {
	t.Helper()
	resp, appErr := h.svc.CreateSeries(context.Background(), classRequest(), weeklyRule(), facilitatorUser.ID)
	if appErr != nil {
		t.Fatalf("CreateSeries: %v", appErr)
	}
	return resp
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return id
}

func TestCreateSeriesWeekly(t *testing.T) {
	h := newHarness(t)
	resp := h.createSeries(t)

	want := []time.Time{
		seriesStart,
		seriesStart.AddDate(0, 0, 2),
		seriesStart.AddDate(0, 0, 7),
		seriesStart.AddDate(0, 0, 9),
	}
	if len(resp.Classes) != len(want) {
		t.Fatalf("classes = %d, want %d", len(resp.Classes), len(want))
	}

	eventIDs := map[string]bool{}
	for i, c := range resp.Classes {
		if !c.StartTime.Equal(want[i]) {
			t.Errorf("class %d start = %v, want %v", i, c.StartTime, want[i])
		}
		if c.EndTime.Sub(c.StartTime) != time.Hour {
			t.Errorf("class %d duration = %v", i, c.EndTime.Sub(c.StartTime))
		}
		if c.RecurringID != resp.Recurrence.ID {
			t.Errorf("class %d recurring_id = %q, want %q", i, c.RecurringID, resp.Recurrence.ID)
		}
		if c.CalendarEventID == "" || eventIDs[c.CalendarEventID] {
			t.Errorf("class %d event id %q is empty or repeated", i, c.CalendarEventID)
		}
		eventIDs[c.CalendarEventID] = true
		if c.MeetLink != "abc-defg-001" {
			t.Errorf("class %d meet link = %q", i, c.MeetLink)
		}
		if c.Facilitator.Email != facilitatorUser.Email || c.Lang != "en" {
			t.Errorf("class %d facilitator/lang = %+v/%s", i, c.Facilitator, c.Lang)
		}
	}

	if resp.Recurrence.CalendarEventID != "evt1" {
		t.Fatalf("root event = %q", resp.Recurrence.CalendarEventID)
	}
	if strings.Join(resp.Recurrence.OnDays, ",") != "MO,WE" {
		t.Fatalf("on_days = %v", resp.Recurrence.OnDays)
	}
	if h.store.classCount() != 4 || h.store.groupCount() != 1 {
		t.Fatalf("stored %d classes, %d groups", h.store.classCount(), h.store.groupCount())
	}

	if resp.Recurrence.CohortRoomID != "!room1:example.org" {
		t.Fatalf("cohort room = %q", resp.Recurrence.CohortRoomID)
	}
	if got := h.chat.added["!room1:example.org"]; len(got) != 1 || got[0] != facilitatorUser.ID {
		t.Fatalf("room members = %v", got)
	}
	if len(h.pub.groups) != 1 || h.pub.groups[0].String() != resp.Recurrence.ID {
		t.Fatalf("published = %v", h.pub.groups)
	}
}

func TestCreateSeriesDaily(t *testing.T) {
	h := newHarness(t)
	rule := &calendarEntity.RecurrenceRule{
		Frequency:  "daily",
		OnDays:     []string{"mo", "tu", "we", "th", "fr"},
		Occurrence: intPtr(7),
	}

	resp, appErr := h.svc.CreateSeries(context.Background(), classRequest(), rule, facilitatorUser.ID)
	if appErr != nil {
		t.Fatalf("CreateSeries: %v", appErr)
	}
	if len(resp.Classes) != 7 {
		t.Fatalf("classes = %d, want 7", len(resp.Classes))
	}
	for _, c := range resp.Classes {
		if wd := c.StartTime.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("weekend class at %v", c.StartTime)
		}
	}
	if resp.Recurrence.Frequency != "DAILY" {
		t.Fatalf("frequency = %q", resp.Recurrence.Frequency)
	}
}

func TestCreateSeriesPersistFailureLeavesNoRows(t *testing.T) {
	h := newHarness(t)
	h.store.createInstancesErr = stdErrors.New("disk full")

	_, appErr := h.svc.CreateSeries(context.Background(), classRequest(), weeklyRule(), facilitatorUser.ID)
	if appErr == nil || appErr.Code != errors.ErrPersistence {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrPersistence)
	}
	if h.store.classCount() != 0 || h.store.groupCount() != 0 {
		t.Fatalf("stored %d classes, %d groups after rollback", h.store.classCount(), h.store.groupCount())
	}
	if !h.cal.exists("evt1") {
		t.Fatalf("root event should be left in the calendar")
	}
	if len(h.pub.groups) != 0 {
		t.Fatalf("nothing should be published")
	}
}

func TestCreateSeriesCalendarUnavailable(t *testing.T) {
	h := newHarness(t)
	h.cal.createErr = fmt.Errorf("calendar CreateEvent: %w", calendarService.ErrCalendarUnavailable)

	_, appErr := h.svc.CreateSeries(context.Background(), classRequest(), weeklyRule(), facilitatorUser.ID)
	if appErr == nil || appErr.Code != errors.ErrCalendarCreateFailed {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrCalendarCreateFailed)
	}
	if appErr.Message != "calendar is unavailable, try again later" {
		t.Fatalf("message = %q", appErr.Message)
	}
	if appErr.Status() != 502 {
		t.Fatalf("status = %d", appErr.Status())
	}
	if h.store.classCount() != 0 || len(h.chat.rooms) != 0 {
		t.Fatalf("no rows or rooms expected")
	}
}

func TestCreateSeriesRejectsInvalidRule(t *testing.T) {
	until := seriesStart.AddDate(0, 1, 0)
	tests := []struct {
		name string
		rule *calendarEntity.RecurrenceRule
	}{
		{"occurrence and until", &calendarEntity.RecurrenceRule{Frequency: "WEEKLY", OnDays: []string{"MO"}, Occurrence: intPtr(2), Until: &until}},
		{"no bound", &calendarEntity.RecurrenceRule{Frequency: "WEEKLY", OnDays: []string{"MO"}}},
		{"bad day", &calendarEntity.RecurrenceRule{Frequency: "WEEKLY", OnDays: []string{"XX"}, Occurrence: intPtr(2)}},
		{"too many", &calendarEntity.RecurrenceRule{Frequency: "WEEKLY", OnDays: []string{"MO"}, Occurrence: intPtr(49)}},
		{"monthly", &calendarEntity.RecurrenceRule{Frequency: "MONTHLY", OnDays: []string{"MO"}, Occurrence: intPtr(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, appErr := h.svc.CreateSeries(context.Background(), classRequest(), tt.rule, facilitatorUser.ID)
			if appErr == nil || appErr.Code != errors.ErrValidation {
				t.Fatalf("err = %v, want %s", appErr, errors.ErrValidation)
			}
			if h.cal.seq != 0 {
				t.Fatalf("calendar should not be called")
			}
		})
	}
}

func TestCreateSeriesExplicitFacilitator(t *testing.T) {
	h := newHarness(t)

	req := classRequest()
	req.FacilitatorName = "Guest Speaker"
	_, appErr := h.svc.CreateSeries(context.Background(), req, weeklyRule(), adminUser.ID)
	if appErr == nil || appErr.Code != errors.ErrValidation {
		t.Fatalf("name without email: err = %v", appErr)
	}

	req.FacilitatorEmail = "guest@example.org"
	resp, appErr := h.svc.CreateSeries(context.Background(), req, weeklyRule(), adminUser.ID)
	if appErr != nil {
		t.Fatalf("CreateSeries: %v", appErr)
	}
	if f := resp.Classes[0].Facilitator; f.Name != "Guest Speaker" || f.Email != "guest@example.org" || f.ID != "" {
		t.Fatalf("facilitator = %+v", f)
	}
	if len(h.chat.welcomed) != 0 {
		t.Fatalf("guest facilitator has no account to welcome")
	}
}

func TestUpdateSeriesKeepsRegistrants(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createSeries(t)

	if _, appErr := h.svc.Register(ctx, mustUUID(t, created.Classes[1].ID), learnerUser.ID); appErr != nil {
		t.Fatalf("Register: %v", appErr)
	}
	if _, appErr := h.svc.Register(ctx, mustUUID(t, created.Classes[3].ID), secondLearner.ID); appErr != nil {
		t.Fatalf("Register: %v", appErr)
	}

	updated, appErr := h.svc.UpdateSeries(ctx, mustUUID(t, created.Classes[2].ID), &dto.UpdateClassRequest{
		Title: strPtr("Advanced Go"),
	}, facilitatorUser.ID)
	if appErr != nil {
		t.Fatalf("UpdateSeries: %v", appErr)
	}

	if updated.Recurrence.ID == created.Recurrence.ID {
		t.Fatalf("series should be regenerated under a new group")
	}
	if updated.Recurrence.CohortRoomID != created.Recurrence.CohortRoomID {
		t.Fatalf("cohort room not carried over")
	}
	if len(updated.Classes) != 4 {
		t.Fatalf("classes = %d, want 4", len(updated.Classes))
	}
	// regenerated from the targeted Jan 8 class
	wantStarts := []time.Time{
		seriesStart.AddDate(0, 0, 7),
		seriesStart.AddDate(0, 0, 9),
		seriesStart.AddDate(0, 0, 14),
		seriesStart.AddDate(0, 0, 16),
	}
	for i, want := range wantStarts {
		if !updated.Classes[i].StartTime.Equal(want) {
			t.Errorf("class %d start = %v, want %v", i, updated.Classes[i].StartTime, want)
		}
		if d := updated.Classes[i].EndTime.Sub(updated.Classes[i].StartTime); d != time.Hour {
			t.Errorf("class %d duration = %v, want 1h", i, d)
		}
	}
	for i, c := range updated.Classes {
		if c.Title != "Advanced Go" {
			t.Errorf("class %d title = %q", i, c.Title)
		}
		if c.RegistrationCount != 2 {
			t.Errorf("class %d registrations = %d, want 2", i, c.RegistrationCount)
		}
	}

	if h.store.classCount() != 4 || h.store.groupCount() != 1 {
		t.Fatalf("stored %d classes, %d groups", h.store.classCount(), h.store.groupCount())
	}
	if len(h.cal.deleted) != 1 || h.cal.deleted[0] != "evt1" {
		t.Fatalf("deleted events = %v", h.cal.deleted)
	}
	root := h.cal.events[updated.Recurrence.CalendarEventID]
	if root == nil || len(root.Attendees) != 3 {
		t.Fatalf("new root attendees = %+v", root)
	}
}

func TestUpdateSeriesChangesRule(t *testing.T) {
	h := newHarness(t)
	created := h.createSeries(t)

	resp, appErr := h.svc.UpdateSeries(context.Background(), mustUUID(t, created.Classes[0].ID), &dto.UpdateClassRequest{
		Recurrence: &dto.RecurrenceRequest{Frequency: "weekly", OnDays: []string{"fr"}, Occurrence: intPtr(2)},
	}, adminUser.ID)
	if appErr != nil {
		t.Fatalf("UpdateSeries: %v", appErr)
	}
	if len(resp.Classes) != 2 {
		t.Fatalf("classes = %d, want 2", len(resp.Classes))
	}
	for _, c := range resp.Classes {
		if c.StartTime.Weekday() != time.Friday {
			t.Fatalf("class on %v, want Friday", c.StartTime.Weekday())
		}
	}
	if h.store.classCount() != 2 {
		t.Fatalf("stored %d classes", h.store.classCount())
	}
}

func TestUpdateSeriesMigrationFailureKeepsNewSeries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createSeries(t)

	if _, appErr := h.svc.Register(ctx, mustUUID(t, created.Classes[0].ID), learnerUser.ID); appErr != nil {
		t.Fatalf("Register: %v", appErr)
	}
	h.store.registerUsersErr = stdErrors.New("connection reset")

	var logs bytes.Buffer
	logger.InitWithWriter(&logs, "info", "json")
	t.Cleanup(func() { logger.Init("info", "json") })

	resp, appErr := h.svc.UpdateSeries(ctx, mustUUID(t, created.Classes[0].ID), &dto.UpdateClassRequest{
		Description: strPtr("Now with generics"),
	}, facilitatorUser.ID)
	if appErr != nil {
		t.Fatalf("UpdateSeries: %v", appErr)
	}
	if h.store.classCount() != 4 {
		t.Fatalf("stored %d classes, want 4", h.store.classCount())
	}
	for _, c := range resp.Classes {
		if c.RegistrationCount != 0 {
			t.Fatalf("registrations should be lost, got %d", c.RegistrationCount)
		}
		if c.Description != "Now with generics" {
			t.Fatalf("description = %q", c.Description)
		}
	}

	var entry string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "RegistrationMigrator:Migrate:LostRegistrations") {
			entry = line
		}
	}
	if entry == "" {
		t.Fatalf("lost registrations not logged:\n%s", logs.String())
	}
	if !strings.Contains(entry, learnerUser.ID.String()) || !strings.Contains(entry, "connection reset") {
		t.Fatalf("log entry missing user id or cause: %s", entry)
	}
}

func TestUpdateSeriesForbidden(t *testing.T) {
	h := newHarness(t)
	created := h.createSeries(t)

	_, appErr := h.svc.UpdateSeries(context.Background(), mustUUID(t, created.Classes[0].ID), &dto.UpdateClassRequest{
		Title: strPtr("Hijacked"),
	}, learnerUser.ID)
	if appErr == nil || appErr.Code != errors.ErrForbidden {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrForbidden)
	}
	if len(h.cal.deleted) != 0 || h.cal.seq != 1 {
		t.Fatalf("calendar touched: deleted=%v creates=%d", h.cal.deleted, h.cal.seq)
	}
	group, _ := h.store.FindGroupByID(context.Background(), mustUUID(t, created.Recurrence.ID))
	if group == nil || h.store.classCount() != 4 {
		t.Fatalf("series should be untouched")
	}
}

func TestUpdateSeriesOnStandaloneClass(t *testing.T) {
	h := newHarness(t)
	single, appErr := h.svc.CreateSingle(context.Background(), classRequest(), facilitatorUser.ID)
	if appErr != nil {
		t.Fatalf("CreateSingle: %v", appErr)
	}

	_, appErr = h.svc.UpdateSeries(context.Background(), mustUUID(t, single.ID), &dto.UpdateClassRequest{}, facilitatorUser.ID)
	if appErr == nil || appErr.Code != errors.ErrValidation {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrValidation)
	}
}

func TestDeleteSeries(t *testing.T) {
	h := newHarness(t)
	created := h.createSeries(t)

	if appErr := h.svc.DeleteSeries(context.Background(), mustUUID(t, created.Classes[3].ID), adminUser.ID); appErr != nil {
		t.Fatalf("DeleteSeries: %v", appErr)
	}
	if h.store.classCount() != 0 || h.store.groupCount() != 0 {
		t.Fatalf("stored %d classes, %d groups", h.store.classCount(), h.store.groupCount())
	}
	if len(h.cal.deleted) != 1 || h.cal.deleted[0] != "evt1" {
		t.Fatalf("deleted events = %v", h.cal.deleted)
	}
}

func TestDeleteSeriesSurvivesCalendarFailure(t *testing.T) {
	h := newHarness(t)
	created := h.createSeries(t)
	h.cal.deleteErr = calendarService.ErrCalendarUnavailable

	if appErr := h.svc.DeleteSeries(context.Background(), mustUUID(t, created.Classes[0].ID), facilitatorUser.ID); appErr != nil {
		t.Fatalf("DeleteSeries: %v", appErr)
	}
	if h.store.classCount() != 0 {
		t.Fatalf("rows should be removed even when the calendar fails")
	}
}

func TestDeleteSeriesForbidden(t *testing.T) {
	h := newHarness(t)
	created := h.createSeries(t)

	appErr := h.svc.DeleteSeries(context.Background(), mustUUID(t, created.Classes[0].ID), learnerUser.ID)
	if appErr == nil || appErr.Code != errors.ErrForbidden {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrForbidden)
	}
	if h.store.classCount() != 4 || len(h.cal.deleted) != 0 {
		t.Fatalf("series should be untouched")
	}
}

func TestCreateSingle(t *testing.T) {
	h := newHarness(t)
	req := classRequest()
	req.Lang = "ta"
	req.MaterialLink = "https://example.org/slides"

	resp, appErr := h.svc.CreateSingle(context.Background(), req, facilitatorUser.ID)
	if appErr != nil {
		t.Fatalf("CreateSingle: %v", appErr)
	}
	if resp.RecurringID != "" || resp.CalendarEventID != "evt1" || resp.MeetLink != "abc-defg-001" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Lang != "ta" || resp.MaterialLink != "https://example.org/slides" {
		t.Fatalf("lang/material = %s/%s", resp.Lang, resp.MaterialLink)
	}
	if len(h.chat.rooms) != 0 {
		t.Fatalf("standalone classes get no cohort room")
	}
}

func TestUpdateSingle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, appErr := h.svc.CreateSingle(ctx, classRequest(), facilitatorUser.ID)
	if appErr != nil {
		t.Fatalf("CreateSingle: %v", appErr)
	}
	id := mustUUID(t, created.ID)

	moved := seriesStart.Add(2 * time.Hour)
	resp, appErr := h.svc.UpdateSingle(ctx, id, &dto.UpdateClassRequest{
		Title:     strPtr("Go Concurrency"),
		StartTime: &moved,
	}, facilitatorUser.ID)
	if appErr != nil {
		t.Fatalf("UpdateSingle: %v", appErr)
	}
	if resp.Title != "Go Concurrency" || !resp.StartTime.Equal(moved) || !resp.EndTime.Equal(moved.Add(time.Hour)) {
		t.Fatalf("resp = %+v", resp)
	}

	patch, ok := h.cal.patches["evt1"]
	if !ok || patch.Title == nil || *patch.Title != "Go Concurrency" || patch.Start == nil {
		t.Fatalf("calendar patch = %+v", patch)
	}

	stored, _ := h.store.FindInstanceByID(ctx, id)
	if stored.Title != "Go Concurrency" {
		t.Fatalf("stored title = %q", stored.Title)
	}
}

func TestUpdateSingleInvalidTimes(t *testing.T) {
	h := newHarness(t)
	created, _ := h.svc.CreateSingle(context.Background(), classRequest(), facilitatorUser.ID)

	early := seriesStart.Add(-time.Hour)
	_, appErr := h.svc.UpdateSingle(context.Background(), mustUUID(t, created.ID), &dto.UpdateClassRequest{
		EndTime: &early,
	}, facilitatorUser.ID)
	if appErr == nil || appErr.Code != errors.ErrValidation {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrValidation)
	}
	if len(h.cal.patches) != 0 {
		t.Fatalf("calendar should not be patched")
	}
}

func TestUpdateSingleForbidden(t *testing.T) {
	h := newHarness(t)
	created, _ := h.svc.CreateSingle(context.Background(), classRequest(), facilitatorUser.ID)

	_, appErr := h.svc.UpdateSingle(context.Background(), mustUUID(t, created.ID), &dto.UpdateClassRequest{
		Title: strPtr("Mine now"),
	}, secondLearner.ID)
	if appErr == nil || appErr.Code != errors.ErrForbidden {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrForbidden)
	}
	if len(h.cal.patches) != 0 {
		t.Fatalf("calendar should not be patched")
	}
}

func TestDeleteSingle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, _ := h.svc.CreateSingle(ctx, classRequest(), facilitatorUser.ID)
	id := mustUUID(t, created.ID)

	if appErr := h.svc.DeleteSingle(ctx, id, learnerUser.ID); appErr == nil || appErr.Code != errors.ErrForbidden {
		t.Fatalf("learner delete: err = %v", appErr)
	}
	if appErr := h.svc.DeleteSingle(ctx, id, facilitatorUser.ID); appErr != nil {
		t.Fatalf("DeleteSingle: %v", appErr)
	}
	if h.store.classCount() != 0 || len(h.cal.deleted) != 1 {
		t.Fatalf("classes=%d deleted=%v", h.store.classCount(), h.cal.deleted)
	}
	if appErr := h.svc.DeleteSingle(ctx, id, facilitatorUser.ID); appErr == nil || appErr.Code != errors.ErrNotFound {
		t.Fatalf("second delete: err = %v", appErr)
	}
}

func TestDeleteOneClassOfSeries(t *testing.T) {
	h := newHarness(t)
	created := h.createSeries(t)

	if appErr := h.svc.DeleteSingle(context.Background(), mustUUID(t, created.Classes[1].ID), facilitatorUser.ID); appErr != nil {
		t.Fatalf("DeleteSingle: %v", appErr)
	}
	if h.store.classCount() != 3 || h.store.groupCount() != 1 {
		t.Fatalf("stored %d classes, %d groups", h.store.classCount(), h.store.groupCount())
	}
}

func TestRegisterRespectsMaxEnrolment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := classRequest()
	req.MaxEnrolment = intPtr(1)
	created, _ := h.svc.CreateSingle(ctx, req, facilitatorUser.ID)
	id := mustUUID(t, created.ID)

	resp, appErr := h.svc.Register(ctx, id, learnerUser.ID)
	if appErr != nil {
		t.Fatalf("Register: %v", appErr)
	}
	if resp.RegistrationCount != 1 {
		t.Fatalf("registrations = %d", resp.RegistrationCount)
	}

	if _, appErr := h.svc.Register(ctx, id, learnerUser.ID); appErr != nil {
		t.Fatalf("registering twice should be a no-op: %v", appErr)
	}

	_, appErr = h.svc.Register(ctx, id, secondLearner.ID)
	if appErr == nil || appErr.Code != errors.ErrClassFull {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrClassFull)
	}
	stored, _ := h.store.FindInstanceByID(ctx, id)
	if len(stored.Registrations) != 1 {
		t.Fatalf("registrations = %d after full class", len(stored.Registrations))
	}

	patch := h.cal.patches["evt1"]
	if len(patch.Attendees) != 2 || patch.Attendees[1] != learnerUser.Email {
		t.Fatalf("attendees = %v", patch.Attendees)
	}
}

func TestRegisterJoinsCohortRoom(t *testing.T) {
	h := newHarness(t)
	created := h.createSeries(t)

	if _, appErr := h.svc.Register(context.Background(), mustUUID(t, created.Classes[0].ID), learnerUser.ID); appErr != nil {
		t.Fatalf("Register: %v", appErr)
	}
	members := h.chat.added[created.Recurrence.CohortRoomID]
	if len(members) != 2 || members[1] != learnerUser.ID {
		t.Fatalf("room members = %v", members)
	}
}

func TestRegisterEndedClass(t *testing.T) {
	h := newHarness(t)
	created, _ := h.svc.CreateSingle(context.Background(), classRequest(), facilitatorUser.ID)
	h.svc.now = func() time.Time { return seriesStart.Add(2 * time.Hour) }

	_, appErr := h.svc.Register(context.Background(), mustUUID(t, created.ID), learnerUser.ID)
	if appErr == nil || appErr.Code != errors.ErrValidation {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrValidation)
	}
}

func TestRegisterUnknownClass(t *testing.T) {
	h := newHarness(t)
	_, appErr := h.svc.Register(context.Background(), uuid.New(), learnerUser.ID)
	if appErr == nil || appErr.Code != errors.ErrNotFound {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrNotFound)
	}
}

func TestUnregister(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, _ := h.svc.CreateSingle(ctx, classRequest(), facilitatorUser.ID)
	id := mustUUID(t, created.ID)

	if appErr := h.svc.Unregister(ctx, id, learnerUser.ID); appErr == nil || appErr.Code != errors.ErrNotFound {
		t.Fatalf("err = %v, want %s", appErr, errors.ErrNotFound)
	}
	if _, appErr := h.svc.Register(ctx, id, learnerUser.ID); appErr != nil {
		t.Fatalf("Register: %v", appErr)
	}
	if appErr := h.svc.Unregister(ctx, id, learnerUser.ID); appErr != nil {
		t.Fatalf("Unregister: %v", appErr)
	}
	resp, _ := h.svc.Get(ctx, id)
	if resp.RegistrationCount != 0 {
		t.Fatalf("registrations = %d", resp.RegistrationCount)
	}
}

func TestListUpcoming(t *testing.T) {
	h := newHarness(t)
	h.createSeries(t)

	page, appErr := h.svc.ListUpcoming(context.Background(), time.Time{}, params.QueryParams{PageNumber: 1, PageSize: 3})
	if appErr != nil {
		t.Fatalf("ListUpcoming: %v", appErr)
	}
	if page.TotalItems != 4 || page.TotalPages != 2 || len(page.Items) != 3 {
		t.Fatalf("page = %+v", page)
	}

	later, _ := h.svc.ListUpcoming(context.Background(), seriesStart.AddDate(0, 0, 5), params.QueryParams{PageNumber: 1, PageSize: 10})
	if later.TotalItems != 2 {
		t.Fatalf("classes after Jan 6 = %d, want 2", later.TotalItems)
	}
}

func TestExportICSSeries(t *testing.T) {
	h := newHarness(t)
	created := h.createSeries(t)

	body, appErr := h.svc.ExportICS(context.Background(), mustUUID(t, created.Classes[0].ID))
	if appErr != nil {
		t.Fatalf("ExportICS: %v", appErr)
	}
	if n := strings.Count(string(body), "BEGIN:VEVENT"); n != 4 {
		t.Fatalf("events = %d, want 4", n)
	}

	if _, appErr := h.svc.ExportICS(context.Background(), uuid.New()); appErr == nil || appErr.Code != errors.ErrNotFound {
		t.Fatalf("unknown class: err = %v", appErr)
	}
}
