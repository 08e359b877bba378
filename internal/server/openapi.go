package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Jamanager API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Coordination backend for live jam sessions: song voting, performance sign-up and real-time updates.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws/{jam}
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws/{jam}")
	getWS.SetSummary("Jam event stream")
	getWS.SetDescription("Upgrades to a WebSocket that streams {event, data} frames for the jam. Clients refetch the snapshot on every frame.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	getWS.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getWS)

	// GET /api/jams
	listJams, _ := r.NewOperationContext(http.MethodGet, "/api/jams")
	listJams.SetSummary("List jams")
	listJams.SetDescription("Returns all jams with song counts, newest first.")
	listJams.AddRespStructure([]JamSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listJams)

	// POST /api/jams
	createJam, _ := r.NewOperationContext(http.MethodPost, "/api/jams")
	createJam.SetSummary("Create jam")
	createJam.SetDescription("Creates a jam with a generated URL slug. Requires the X-Manager-Code header when the manager gate is configured.")
	createJam.AddReqStructure(CreateJamRequest{})
	createJam.AddRespStructure(Jam{}, openapi.WithHTTPStatus(http.StatusCreated))
	createJam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createJam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(createJam)

	// GET /api/jams/by-slug/{slug}
	jamBySlug, _ := r.NewOperationContext(http.MethodGet, "/api/jams/by-slug/{slug}")
	jamBySlug.SetSummary("Jam snapshot by slug")
	jamBySlug.SetDescription("Resolves a public jam URL slug and returns the full ranked snapshot.")
	jamBySlug.AddRespStructure(JamSnapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	jamBySlug.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(jamBySlug)

	// GET /api/jams/{jam}
	getSnapshot, _ := r.NewOperationContext(http.MethodGet, "/api/jams/{jam}")
	getSnapshot.SetSummary("Jam snapshot")
	getSnapshot.SetDescription("Returns the jam with its ranked song queue and attendee roster. This is the refetch target for broadcast events.")
	getSnapshot.AddRespStructure(JamSnapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	getSnapshot.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getSnapshot)

	// POST /api/jams/{jam}/songs
	addSong, _ := r.NewOperationContext(http.MethodPost, "/api/jams/{jam}/songs")
	addSong.SetSummary("Suggest song")
	addSong.SetDescription("Adds a song to the jam queue, by catalog id or by title and artist. Title/artist pairs reuse an existing catalog entry case-insensitively.")
	addSong.AddReqStructure(AddSongRequest{})
	addSong.AddRespStructure(Song{}, openapi.WithHTTPStatus(http.StatusCreated))
	addSong.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	addSong.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(addSong)

	// POST /api/jams/{jam}/songs/{song}/play
	playSong, _ := r.NewOperationContext(http.MethodPost, "/api/jams/{jam}/songs/{song}/play")
	playSong.SetSummary("Mark song played")
	playSong.SetDescription("Marks a queue entry as performed and advances the jam. Requires the X-Manager-Code header when the manager gate is configured.")
	playSong.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	playSong.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	playSong.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(playSong)

	// POST /api/jams/{jam}/vote
	vote, _ := r.NewOperationContext(http.MethodPost, "/api/jams/{jam}/vote")
	vote.SetSummary("Toggle vote")
	vote.SetDescription("Toggles the caller's vote on a song. Identified by attendeeId or sessionId.")
	vote.AddReqStructure(VoteRequest{})
	vote.AddRespStructure(VoteResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	vote.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	vote.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(vote)

	// GET /api/jams/{jam}/songs/{song}/vote-status
	voteStatus, _ := r.NewOperationContext(http.MethodGet, "/api/jams/{jam}/songs/{song}/vote-status")
	voteStatus.SetSummary("Vote status")
	voteStatus.SetDescription("Reports whether the caller has voted for the song plus the current count. Pass attendeeId or sessionId as query parameter.")
	voteStatus.AddRespStructure(VoteResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	voteStatus.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	voteStatus.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(voteStatus)

	// POST /api/jams/{jam}/attendees
	registerAttendee, _ := r.NewOperationContext(http.MethodPost, "/api/jams/{jam}/attendees")
	registerAttendee.SetSummary("Register attendee")
	registerAttendee.SetDescription("Registers a named attendee. Votes previously cast anonymously under the same sessionId are claimed by the attendee.")
	registerAttendee.AddReqStructure(RegisterAttendeeRequest{})
	registerAttendee.AddRespStructure(Attendee{}, openapi.WithHTTPStatus(http.StatusCreated))
	registerAttendee.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	registerAttendee.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(registerAttendee)

	// GET /api/jams/{jam}/attendees
	listAttendees, _ := r.NewOperationContext(http.MethodGet, "/api/jams/{jam}/attendees")
	listAttendees.SetSummary("List attendees")
	listAttendees.AddRespStructure([]Attendee{}, openapi.WithHTTPStatus(http.StatusOK))
	listAttendees.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(listAttendees)

	// POST /api/jams/{jam}/perform
	register, _ := r.NewOperationContext(http.MethodPost, "/api/jams/{jam}/perform")
	register.SetSummary("Register to perform")
	register.SetDescription("Registers an attendee to perform a song, subject to the per-attendee limit.")
	register.AddReqStructure(PerformRequest{})
	register.AddRespStructure(PerformResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	register.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	register.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	register.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(register)

	// DELETE /api/jams/{jam}/perform
	unregister, _ := r.NewOperationContext(http.MethodDelete, "/api/jams/{jam}/perform")
	unregister.SetSummary("Withdraw from performing")
	unregister.SetDescription("Removes an attendee's performance registration for a song, freeing a slot.")
	unregister.AddReqStructure(PerformRequest{})
	unregister.AddRespStructure(PerformResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	unregister.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(unregister)

	// GET /api/jams/{jam}/songs/{song}/performers
	performers, _ := r.NewOperationContext(http.MethodGet, "/api/jams/{jam}/songs/{song}/performers")
	performers.SetSummary("List performers")
	performers.AddRespStructure([]Performer{}, openapi.WithHTTPStatus(http.StatusOK))
	performers.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(performers)

	// GET /api/jams/{jam}/performers
	registrations, _ := r.NewOperationContext(http.MethodGet, "/api/jams/{jam}/performers")
	registrations.SetSummary("List performance registrations")
	registrations.SetDescription("Returns performance registrations in the jam, optionally filtered by attendeeId.")
	registrations.AddRespStructure([]Registration{}, openapi.WithHTTPStatus(http.StatusOK))
	registrations.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(registrations)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
