package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"telescope/pkg/astro"
	"telescope/pkg/control"
	"telescope/pkg/store"
	"telescope/pkg/telescope"
)

type positionView struct {
	RA     float64   `json:"ra_hours"`
	Dec    float64   `json:"dec_degrees"`
	Time   time.Time `json:"time"`
	Status int32     `json:"status"`
}

type slotView struct {
	Slot       int                  `json:"slot"`
	Descriptor telescope.Descriptor `json:"descriptor"`
	Active     bool                 `json:"active"`
	State      string               `json:"state,omitempty"`
	Position   *positionView        `json:"position,omitempty"`
}

func viewSlot(c *control.Control, slot int) slotView {
	v := slotView{Slot: slot, Descriptor: c.Get(slot)}
	if state, ok := c.ClientState(slot); ok {
		v.Active = true
		v.State = state.String()
	}
	if pos, ok := c.CurrentPosition(slot); ok {
		v.Position = &positionView{
			RA:     pos.Equatorial.Hours(),
			Dec:    pos.Equatorial.Degrees(),
			Time:   pos.Time,
			Status: pos.Status,
		}
	}
	return v
}

func pathSlot(r *http.Request) (int, error) {
	slot, err := strconv.Atoi(r.PathValue("slot"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", telescope.ErrInvalidSlot, r.PathValue("slot"))
	}
	return slot, nil
}

func parseFloatRequest(r *http.Request, field string) (float64, error) {
	if err := r.ParseForm(); err != nil {
		return 0, err
	}
	value, ok := r.PostForm[field]
	if !ok {
		return 0, fmt.Errorf("missing field %s", field)
	}
	return strconv.ParseFloat(value[0], 64)
}

func parseBoolRequest(r *http.Request, field string) (bool, error) {
	if err := r.ParseForm(); err != nil {
		return false, err
	}
	value, ok := r.PostForm[field]
	if !ok {
		return false, fmt.Errorf("missing field %s", field)
	}
	return strconv.ParseBool(value[0])
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	var slots []slotView
	err := s.do(r, func(c *control.Control) error {
		for _, slot := range c.Slots() {
			slots = append(slots, viewSlot(c, slot))
		}
		return nil
	})
	if err != nil {
		handleControlError(w, r, err)
		return
	}
	if slots == nil {
		slots = []slotView{}
	}
	handleResponse(w, r, slots)
}

func (s *Server) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := pathSlot(r)
	if err != nil {
		handleControlError(w, r, err)
		return
	}

	var v slotView
	err = s.do(r, func(c *control.Control) error {
		if !telescope.IsValidSlot(slot) {
			return fmt.Errorf("%w: %d", telescope.ErrInvalidSlot, slot)
		}
		if _, ok := c.Lookup(slot); !ok {
			return fmt.Errorf("%w: %d", control.ErrNoDescriptor, slot)
		}
		v = viewSlot(c, slot)
		return nil
	})
	if err != nil {
		handleControlError(w, r, err)
		return
	}
	handleResponse(w, r, v)
}

func (s *Server) handlePutSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := pathSlot(r)
	if err != nil {
		handleControlError(w, r, err)
		return
	}

	var d telescope.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		handleError(w, r, http.StatusBadRequest, "invalid descriptor: "+err.Error())
		return
	}
	if err := d.Validate(); err != nil {
		handleControlError(w, r, err)
		return
	}
	if d.DeviceModel != "" && s.catalog != nil {
		if _, ok := s.catalog.Get(d.DeviceModel); !ok {
			msg := fmt.Sprintf("unknown device model %q", d.DeviceModel)
			if hint := s.catalog.Suggest(d.DeviceModel); hint != "" {
				msg += fmt.Sprintf(", did you mean %q?", hint)
			}
			handleError(w, r, http.StatusBadRequest, msg)
			return
		}
	}

	var v slotView
	err = s.do(r, func(c *control.Control) error {
		prev, existed := c.Lookup(slot)
		if err := c.Add(slot, d); err != nil {
			return err
		}
		if err := c.SaveAll(); err != nil {
			if existed {
				_ = c.Add(slot, prev)
			} else {
				_ = c.Remove(slot)
			}
			return fmt.Errorf("slot %d left unchanged: %w", slot, err)
		}
		v = viewSlot(c, slot)
		return nil
	})
	if err != nil {
		handleControlError(w, r, err)
		return
	}
	handleResponse(w, r, v)
}

func (s *Server) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := pathSlot(r)
	if err != nil {
		handleControlError(w, r, err)
		return
	}

	err = s.do(r, func(c *control.Control) error {
		// The client is already stopped, so a failed save is reported
		// rather than undone.
		stopErr := c.Remove(slot)
		if err := c.SaveAll(); err != nil {
			return errors.Join(stopErr, fmt.Errorf("slot %d removed but not saved: %w", slot, err))
		}
		return stopErr
	})
	if err != nil {
		handleControlError(w, r, err)
		return
	}
	handleResponse(w, r, nil)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.slotAction(w, r, (*control.Control).StartAtSlot)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.slotAction(w, r, (*control.Control).StopAtSlot)
}

func (s *Server) slotAction(w http.ResponseWriter, r *http.Request, action func(*control.Control, int) error) {
	slot, err := pathSlot(r)
	if err != nil {
		handleControlError(w, r, err)
		return
	}

	var v slotView
	err = s.do(r, func(c *control.Control) error {
		if err := action(c, slot); err != nil {
			return err
		}
		v = viewSlot(c, slot)
		return nil
	})
	if err != nil {
		handleControlError(w, r, err)
		return
	}
	handleResponse(w, r, v)
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	slot, err := pathSlot(r)
	if err != nil {
		handleControlError(w, r, err)
		return
	}
	ra, err := parseFloatRequest(r, "RightAscension")
	if err != nil {
		handleError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dec, err := parseFloatRequest(r, "Declination")
	if err != nil {
		handleError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if ra < 0 || ra >= 24 || dec < -90 || dec > 90 {
		handleError(w, r, http.StatusBadRequest, fmt.Sprintf("%v: RA %v h, Dec %v°", control.ErrInvalidPosition, ra, dec))
		return
	}

	pos := astro.FromHoursDegrees(ra, dec)
	err = s.do(r, func(c *control.Control) error {
		return c.GotoSlot(slot, pos)
	})
	if err != nil {
		handleControlError(w, r, err)
		return
	}
	handleResponse(w, r, nil)
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	err := s.do(r, func(c *control.Control) error {
		return c.StopAll()
	})
	if err != nil {
		handleControlError(w, r, err)
		return
	}
	handleResponse(w, r, nil)
}

// handleClients returns the connected clients by slot or, given a prefix,
// the sorted names of active clients matching it.
func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Has("prefix") {
		limit, _ := strconv.Atoi(query.Get("limit"))
		var names []string
		err := s.do(r, func(c *control.Control) error {
			names = c.ListMatchingNames(query.Get("prefix"), limit)
			return nil
		})
		if err != nil {
			handleControlError(w, r, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		handleResponse(w, r, names)
		return
	}

	var names map[int]string
	err := s.do(r, func(c *control.Control) error {
		names = c.ConnectedClientsNames()
		return nil
	})
	if err != nil {
		handleControlError(w, r, err)
		return
	}
	handleResponse(w, r, names)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		handleError(w, r, http.StatusNotFound, "device catalog not loaded")
		return
	}
	handleResponse(w, r, s.catalog.Models())
}

func (s *Server) handleDrivers(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		handleError(w, r, http.StatusNotFound, "device catalog not loaded")
		return
	}
	handleResponse(w, r, s.catalog.Drivers())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settings.Settings()
	if err != nil {
		handleError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	handleResponse(w, r, cfg)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	useServerLogs, err := parseBoolRequest(r, "UseServerLogs")
	if err != nil {
		handleError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cfg := store.Settings{UseServerLogs: useServerLogs}
	if err := s.settings.SetSettings(cfg); err != nil {
		handleError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	err = s.do(r, func(c *control.Control) error {
		c.SetFlagUseServerLogs(useServerLogs)
		return nil
	})
	if err != nil {
		handleControlError(w, r, err)
		return
	}
	handleResponse(w, r, cfg)
}
