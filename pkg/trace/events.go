package trace

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is a trace event type name as it appears in event filenames and task
// history nodes.
type Type string

const (
	TypePending        Type = "pending"
	TypeScheduled      Type = "scheduled"
	TypeConfigured     Type = "configured"
	TypeServiceRunning Type = "service_running"
	TypeServiceExited  Type = "service_exited"
	TypeFinished       Type = "finished"
	TypeAborted        Type = "aborted"
	TypeKilled         Type = "killed"
	TypeDeleted        Type = "deleted"
)

// Event is one lifecycle transition of an instance. The closed set of
// implementations below replaces the runtime type registry of older agents.
type Event interface {
	// EventType names the event.
	EventType() Type
	// EventData is the routable data encoded into the event filename. It may
	// contain dots but never a comma.
	EventData() string
}

// Pending marks an instance seen by the scheduler but not yet placed.
type Pending struct{}

func (Pending) EventType() Type   { return TypePending }
func (Pending) EventData() string { return "" }

// Scheduled marks an instance placed on a server.
type Scheduled struct {
	Where string
}

func (e Scheduled) EventType() Type   { return TypeScheduled }
func (e Scheduled) EventData() string { return e.Where }

// Configured marks a container created for the instance.
type Configured struct {
	UniqueID string
}

func (e Configured) EventType() Type   { return TypeConfigured }
func (e Configured) EventData() string { return e.UniqueID }

// ServiceRunning marks a service of the instance started.
type ServiceRunning struct {
	UniqueID string
	Service  string
}

func (e ServiceRunning) EventType() Type { return TypeServiceRunning }
func (e ServiceRunning) EventData() string {
	return e.UniqueID + "." + e.Service
}

// ServiceExited marks a service of the instance exited. Signal mirrors RC on
// abnormal exits for wire compatibility with existing consumers; it is not a
// real signal number.
type ServiceExited struct {
	UniqueID string
	Service  string
	RC       int
	Signal   int
}

func (e ServiceExited) EventType() Type { return TypeServiceExited }
func (e ServiceExited) EventData() string {
	return fmt.Sprintf("%s.%s.%d.%d", e.UniqueID, e.Service, e.RC, e.Signal)
}

// Finished marks a normal terminal exit.
type Finished struct {
	RC     int
	Signal int
}

func (e Finished) EventType() Type   { return TypeFinished }
func (e Finished) EventData() string { return fmt.Sprintf("%d.%d", e.RC, e.Signal) }

// Aborted marks an abnormal terminal exit.
type Aborted struct {
	Why string
}

func (e Aborted) EventType() Type   { return TypeAborted }
func (e Aborted) EventData() string { return e.Why }

// Killed marks a terminal exit forced by the system.
type Killed struct {
	IsOOM bool
}

func (e Killed) EventType() Type { return TypeKilled }
func (e Killed) EventData() string {
	if e.IsOOM {
		return "oom"
	}
	return ""
}

// Deleted marks the instance removed from the scheduler.
type Deleted struct{}

func (Deleted) EventType() Type   { return TypeDeleted }
func (Deleted) EventData() string { return "" }

// Terminal reports whether the event type ends the instance's life on this
// node.
func Terminal(t Type) bool {
	switch t {
	case TypeFinished, TypeAborted, TypeKilled:
		return true
	}
	return false
}

// FromData decodes an event from its type name and event-data encoding.
func FromData(t Type, data string) (Event, error) {
	switch t {
	case TypePending:
		return Pending{}, nil
	case TypeDeleted:
		return Deleted{}, nil
	case TypeScheduled:
		return Scheduled{Where: data}, nil
	case TypeConfigured:
		return Configured{UniqueID: data}, nil
	case TypeKilled:
		return Killed{IsOOM: data == "oom"}, nil
	case TypeAborted:
		return Aborted{Why: data}, nil
	case TypeFinished:
		// rc.signal; split on the last dot so values with embedded dots do
		// not mis-parse.
		i := strings.LastIndex(data, ".")
		if i < 0 {
			return nil, fmt.Errorf("malformed finished data %q", data)
		}
		rc, err := strconv.Atoi(data[:i])
		if err != nil {
			return nil, fmt.Errorf("malformed finished rc %q", data)
		}
		sig, err := strconv.Atoi(data[i+1:])
		if err != nil {
			return nil, fmt.Errorf("malformed finished signal %q", data)
		}
		return Finished{RC: rc, Signal: sig}, nil
	case TypeServiceRunning:
		// uniqueid.service; the service name may itself contain dots.
		i := strings.Index(data, ".")
		if i < 0 {
			return nil, fmt.Errorf("malformed service_running data %q", data)
		}
		return ServiceRunning{UniqueID: data[:i], Service: data[i+1:]}, nil
	case TypeServiceExited:
		// uniqueid.service.rc.signal; rc and signal are the last two parts,
		// the service name keeps any interior dots.
		parts := strings.Split(data, ".")
		if len(parts) < 4 {
			return nil, fmt.Errorf("malformed service_exited data %q", data)
		}
		sig, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			return nil, fmt.Errorf("malformed service_exited signal %q", data)
		}
		rc, err := strconv.Atoi(parts[len(parts)-2])
		if err != nil {
			return nil, fmt.Errorf("malformed service_exited rc %q", data)
		}
		return ServiceExited{
			UniqueID: parts[0],
			Service:  strings.Join(parts[1:len(parts)-2], "."),
			RC:       rc,
			Signal:   sig,
		}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", t)
}
