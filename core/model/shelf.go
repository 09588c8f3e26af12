package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// ShelfID identifies a physical shelf controller.
type ShelfID int

func (s ShelfID) String() string { return strconv.Itoa(int(s)) }

// ShelfHealth is the liveness view of one shelf controller. LastHeartbeat is
// zero until the shelf has been heard from and is then left out of the JSON.
type ShelfHealth struct {
	Shelf         ShelfID
	Online        bool
	LastHeartbeat time.Time
}

type shelfHealthJSON struct {
	Shelf         ShelfID    `json:"shelf"`
	Online        bool       `json:"online"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

func (h ShelfHealth) MarshalJSON() ([]byte, error) {
	out := shelfHealthJSON{Shelf: h.Shelf, Online: h.Online}
	if !h.LastHeartbeat.IsZero() {
		t := h.LastHeartbeat
		out.LastHeartbeat = &t
	}
	return json.Marshal(out)
}

func (h *ShelfHealth) UnmarshalJSON(b []byte) error {
	var in shelfHealthJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*h = ShelfHealth{Shelf: in.Shelf, Online: in.Online}
	if in.LastHeartbeat != nil {
		h.LastHeartbeat = *in.LastHeartbeat
	}
	return nil
}
