package model

import "time"

// Event is the decoded exec event handed to the detection engine, metrics
// and the store. A zero Ppid and an empty Filename mean the kernel-side
// read came back empty; consumers treat them as unknown, not as errors.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Pid       uint32    `json:"pid"`
	Ppid      uint32    `json:"ppid"`
	Comm      string    `json:"comm"`
	Filename  string    `json:"filename"`
}
