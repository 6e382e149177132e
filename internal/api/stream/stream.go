// Package stream serves the read-only UI surface: a websocket state stream
// per campaign plus JSON endpoints for snapshots and journal pages. The
// stream only ever reads session state; all mutations go through the MCP
// surface.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
	"github.com/loreforge/loreforge/internal/session"
	"github.com/loreforge/loreforge/internal/storage"
	"github.com/loreforge/loreforge/internal/storage/cursor"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second

	defaultEventPageSize = 50
	maxEventPageSize     = 200
)

// Server is the HTTP/websocket read surface.
type Server struct {
	manager  *session.Manager
	store    storage.Store
	router   *mux.Router
	upgrader websocket.Upgrader
}

// New creates the stream server and its routes.
func New(manager *session.Manager, store storage.Store) *Server {
	s := &Server{
		manager: manager,
		store:   store,
		router:  mux.NewRouter(),
		upgrader: websocket.Upgrader{
			// The stream is read-only; origin policy belongs to the proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/campaigns/{id}/state", s.handleState).Methods(http.MethodGet)
	s.router.HandleFunc("/campaigns/{id}/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/campaigns/{id}/ws", s.handleWS).Methods(http.MethodGet)
	return s
}

// Handler returns the HTTP handler for the stream server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// unitView is one combatant or party member in a frame.
type unitView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	CurrentHP  int      `json:"current_hp"`
	MaxHP      int      `json:"max_hp,omitempty"`
	ArmorClass int      `json:"armor_class"`
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Conditions []string `json:"conditions,omitempty"`
}

// stateView is the UI-facing projection of the session state.
type stateView struct {
	CampaignID      string            `json:"campaign_id"`
	Title           string            `json:"title"`
	Mode            string            `json:"mode"`
	Round           int               `json:"round,omitempty"`
	TurnHolder      string            `json:"turn_holder"`
	InitiativeOrder []string          `json:"initiative_order,omitempty"`
	Day             int               `json:"day"`
	TimeOfDay       string            `json:"time_of_day"`
	Weather         string            `json:"weather"`
	Party           []unitView        `json:"party"`
	Monsters        []unitView        `json:"monsters,omitempty"`
	Quests          []campaign.Quest  `json:"quests,omitempty"`
	NPCs            []campaign.NPC    `json:"npcs,omitempty"`
	Map             campaign.MapState `json:"map"`
}

// frame is one websocket message: a full keyframe plus the events that
// produced it. Every frame is self-contained, so a dropped frame never
// desyncs a client.
type frame struct {
	Type   string           `json:"type"`
	State  stateView        `json:"state"`
	Events []campaign.Event `json:"events,omitempty"`
}

func buildView(state campaign.State) stateView {
	view := stateView{
		CampaignID:      state.Campaign.ID,
		Title:           state.Campaign.Title,
		Mode:            state.Campaign.Mode.String(),
		Round:           state.Campaign.Round,
		TurnHolder:      state.TurnHolder(),
		InitiativeOrder: state.Campaign.InitiativeOrder,
		Day:             state.Campaign.Clock.Day,
		TimeOfDay:       string(state.Campaign.Clock.Segment),
		Weather:         string(state.Campaign.Clock.Weather),
		Quests:          state.Campaign.Quests,
		NPCs:            state.Campaign.NPCs,
		Map:             state.Campaign.Map,
	}
	for _, playerID := range state.Campaign.PlayerIDs {
		ch, ok := state.Characters[playerID]
		if !ok {
			continue
		}
		unit := unitView{
			ID:         ch.ID,
			Name:       ch.Name,
			CurrentHP:  ch.CurrentHP,
			MaxHP:      ch.MaxHP,
			ArmorClass: ch.ArmorClass,
			X:          state.Campaign.Map.PartyPos.X,
			Y:          state.Campaign.Map.PartyPos.Y,
		}
		for condition, active := range ch.Conditions {
			if active {
				unit.Conditions = append(unit.Conditions, string(condition))
			}
		}
		view.Party = append(view.Party, unit)
	}
	for _, unitID := range state.Campaign.InitiativeOrder {
		m, ok := state.Monsters[unitID]
		if !ok {
			continue
		}
		unit := unitView{
			ID:         m.ID,
			Name:       m.Name,
			CurrentHP:  m.CurrentHP,
			MaxHP:      m.Definition.MaxHP,
			ArmorClass: m.Definition.ArmorClass,
			X:          m.Position.X,
			Y:          m.Position.Y,
		}
		for condition, active := range m.Conditions {
			if active {
				unit.Conditions = append(unit.Conditions, string(condition))
			}
		}
		view.Monsters = append(view.Monsters, unit)
	}
	return view
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]
	live, err := s.manager.Session(campaignID)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := live.State(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildView(state))
}

// eventsPage is one journal page with an opaque continuation token.
type eventsPage struct {
	Events     []campaign.Event `json:"events"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]

	afterSeq, err := cursor.Decode(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidTarget, "invalid cursor", err))
		return
	}
	limit := defaultEventPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, apperrors.New(apperrors.CodeInvalidTarget, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxEventPageSize {
		limit = maxEventPageSize
	}

	events, err := s.store.ListEvents(r.Context(), campaignID, afterSeq, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	page := eventsPage{Events: events}
	if len(events) == limit {
		page.NextCursor = cursor.Encode(events[len(events)-1].Seq)
	}
	if page.Events == nil {
		page.Events = []campaign.Event{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]
	live, err := s.manager.Session(campaignID)
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := live.State(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	updates, cancelWatch, err := live.Watch(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancelWatch()
		log.Printf("ws upgrade failed campaign_id=%s error=%v", campaignID, err)
		return
	}

	// The request context is canceled when this handler returns, even for
	// hijacked connections, so the pump's lifetime must not derive from it;
	// the read loop below cancels on client close instead.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		// Clients never send application data; the read loop exists to
		// observe the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go s.writePump(ctx, conn, campaignID, frame{Type: "keyframe", State: buildView(state)}, updates, cancelWatch)
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, campaignID string, first frame, updates <-chan session.Update, cancelWatch func()) {
	defer func() {
		cancelWatch()
		conn.Close()
	}()

	write := func(v any) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteJSON(v)
	}
	if err := write(first); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				// Session exited; tell the client before closing.
				deadline := time.Now().Add(writeWait)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session exited"), deadline)
				return
			}
			if err := write(frame{Type: "keyframe", State: buildView(update.State), Events: update.Events}); err != nil {
				log.Printf("ws write failed campaign_id=%s error=%v", campaignID, err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response failed error=%v", err)
	}
}

// writeError maps coded errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := apperrors.CodeOf(err)
	switch code {
	case apperrors.CodeNotFound, apperrors.CodeSessionNotLoaded:
		status = http.StatusNotFound
	case apperrors.CodeInvalidTarget:
		status = http.StatusBadRequest
	case apperrors.CodeSessionAlreadyActive, apperrors.CodeConflict, apperrors.CodeAlreadyThinking:
		status = http.StatusConflict
	case apperrors.CodeSessionExited:
		status = http.StatusGone
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": string(code)})
}
