package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"plancal/internal/civil"
	appLog "plancal/internal/log"
	"plancal/internal/model"
)

const defaultFeedCallType = "Meeting"

// ParseCalls reads the timed VEVENTs of an iCalendar payload as call
// records, placed on the calendar day they start on in loc. All-day and
// recurring events are skipped; a VEVENT that cannot be read is logged and
// skipped without failing the feed.
func ParseCalls(feed Feed, body []byte, loc *time.Location) ([]model.CallRecord, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse %s: %w", feed.ID, err)
	}

	calls := make([]model.CallRecord, 0)
	for _, ve := range cal.Events() {
		call, ok, err := callFromEvent(feed, ve, loc)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "feed", feed.ID)
			continue
		}
		if ok {
			calls = append(calls, call)
		}
	}
	return calls, nil
}

func callFromEvent(feed Feed, ve *ical.VEvent, loc *time.Location) (model.CallRecord, bool, error) {
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return model.CallRecord{}, false, errors.New("missing UID")
	}
	if ve.GetProperty(ical.ComponentPropertyRrule) != nil {
		appLog.Debug("ics: recurring vevent not imported as a call", "feed", feed.ID, "uid", uid.Value)
		return model.CallRecord{}, false, nil
	}
	if dt := ve.GetProperty(ical.ComponentPropertyDtStart); dt == nil || !strings.Contains(dt.Value, "T") {
		return model.CallRecord{}, false, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return model.CallRecord{}, false, fmt.Errorf("DTSTART: %w", err)
	}
	start = start.In(loc)

	minutes := 0
	if end, err := ve.GetEndAt(); err == nil && end.After(start) {
		minutes = int(end.Sub(start).Minutes())
	}

	callType := feed.CallType
	if callType == "" {
		callType = defaultFeedCallType
	}

	call := model.CallRecord{
		ID:              feedCallID(feed.ID, uid.Value),
		CallDate:        civil.DateOf(start).String(),
		StartTime:       civil.NewClock(start.Hour(), start.Minute()).String(),
		DurationMinutes: minutes,
		CallType:        callType,
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		call.Subject = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		if name := attendeeName(p); name != "" {
			call.Participants = append(call.Participants, name)
		}
	}
	return call, true, nil
}

func attendeeName(p *ical.IANAProperty) string {
	if cn, ok := p.ICalParameters["CN"]; ok && len(cn) > 0 && cn[0] != "" {
		return cn[0]
	}
	v := p.Value
	if len(v) >= len("mailto:") && strings.EqualFold(v[:len("mailto:")], "mailto:") {
		v = v[len("mailto:"):]
	}
	return v
}

// feedCallID derives a stable positive id for an imported call so that the
// same VEVENT keeps its event id across reloads.
func feedCallID(feedID, uid string) int64 {
	h := fnv.New64a()
	h.Write([]byte(feedID))
	h.Write([]byte{0})
	h.Write([]byte(uid))
	return int64(h.Sum64() &^ (1 << 63))
}

// FeedSource imports calls from a fixed list of feeds on every call to
// Calls.
type FeedSource struct {
	fetcher *Fetcher
	feeds   []Feed
	loc     *time.Location
}

// NewFeedSource returns a FeedSource placing calls in loc.
func NewFeedSource(fetcher *Fetcher, feeds []Feed, loc *time.Location) *FeedSource {
	return &FeedSource{fetcher: fetcher, feeds: feeds, loc: loc}
}

// Calls fetches and parses every feed. Calls from feeds that worked are
// returned together with the joined errors of the ones that did not.
func (s *FeedSource) Calls(ctx context.Context) ([]model.CallRecord, error) {
	var (
		out  []model.CallRecord
		errs []error
	)
	for _, feed := range s.feeds {
		body, fromCache, err := s.fetcher.Fetch(ctx, feed)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.ID, err))
			continue
		}
		calls, err := ParseCalls(feed, body, s.loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		appLog.Info("ics feed imported", "id", feed.ID, "url", redactURL(feed.URL), "calls", len(calls), "from_cache", fromCache)
		out = append(out, calls...)
	}
	return out, errors.Join(errs...)
}
