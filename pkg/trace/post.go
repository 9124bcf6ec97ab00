package trace

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/metrics"
)

// File is one event file in appevents/: the filename encodes every routable
// field, the body carries an opaque payload.
type File struct {
	// Timestamp is seconds since epoch as written, kept as a string so the
	// filename round-trips exactly.
	Timestamp string
	Instance  string
	Event     Event
}

// Filename renders the event file name: <ts>,<instance>,<type>,<data>.
func (f File) Filename() string {
	return fmt.Sprintf("%s,%s,%s,%s",
		f.Timestamp, f.Instance, f.Event.EventType(), f.Event.EventData())
}

// ParseFilename decodes an event file name. Commas are the only separators;
// the event-data part may contain anything but a comma.
func ParseFilename(name string) (File, error) {
	parts := strings.SplitN(name, ",", 4)
	if len(parts) != 4 {
		return File{}, fmt.Errorf("malformed event filename %q", name)
	}
	ev, err := FromData(Type(parts[2]), parts[3])
	if err != nil {
		return File{}, fmt.Errorf("malformed event filename %q: %w", name, err)
	}
	return File{Timestamp: parts[0], Instance: parts[1], Event: ev}, nil
}

// Post writes an event for the instance into the events directory with an
// atomic rename. The payload becomes the file body.
func Post(eventsDir, instance string, ev Event, payload []byte) error {
	f := File{
		Timestamp: fmt.Sprintf("%.6f", float64(time.Now().UnixNano())/1e9),
		Instance:  instance,
		Event:     ev,
	}
	if err := appenv.WriteAtomic(eventsDir, f.Filename(), payload); err != nil {
		return fmt.Errorf("failed to post %s event for %s: %w", ev.EventType(), instance, err)
	}
	metrics.EventsPosted.WithLabelValues(string(ev.EventType())).Inc()
	return nil
}
