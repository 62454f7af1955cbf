package worklist

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/project-flogo/core/data/coerce"
	"github.com/project-flogo/core/support/log"
	"github.com/project-flogo/core/support/service"

	"github.com/project-flogo/petriflow"
	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/model"
	"github.com/project-flogo/petriflow/support"
)

var _ service.Service = (*Service)(nil)

// Service is the REST worklist of an engine: it exposes the specifications,
// the cases and the work item transitions of the resource service
type Service struct {
	engine       *petriflow.Engine
	reqProcessor *RequestProcessor
	router       *httprouter.Router
	server       *Server
	logger       log.Logger
}

// NewService creates the worklist of the engine, settings may hold the
// "port" to listen on
func NewService(engine *petriflow.Engine, settings map[string]interface{}) (*Service, error) {

	ws := &Service{
		engine: engine,
		logger: log.ChildLogger(log.RootLogger(), "petriflow-worklist"),
	}
	ws.reqProcessor = NewRequestProcessor(engine, ws.logger)

	router := httprouter.New()
	router.GlobalOPTIONS = http.HandlerFunc(handleOption)

	router.GET("/status", ws.Status)

	router.GET("/specifications", ws.ListSpecifications)
	router.POST("/specifications", ws.LoadSpecification)
	router.DELETE("/specifications/:specId", ws.UnloadSpecification)

	router.GET("/cases", ws.ListCases)
	router.POST("/cases", ws.LaunchCase)
	router.GET("/cases/:caseId", ws.GetCase)
	router.POST("/cases/:caseId/:action", ws.CaseAction)
	router.GET("/cases/:caseId/workitems", ws.ListWorkItems)

	router.GET("/workitems/:itemId", ws.GetWorkItem)
	router.POST("/workitems/:itemId/:action", ws.WorkItemAction)

	port := support.GetWorklistPort()
	if sPort, set := settings["port"]; set {
		var err error
		port, err = coerce.ToInt(sPort)
		if err != nil {
			return nil, err
		}
	}

	ws.router = router
	ws.server = NewServer(":"+strconv.Itoa(port), router)

	return ws, nil
}

func (ws *Service) Name() string {
	return "Worklist"
}

func (ws *Service) Start() error {
	if err := ws.server.Start(); err != nil {
		return err
	}
	ws.logger.Infof("Worklist listening on %s", ws.server.ListenAddr())
	return nil
}

func (ws *Service) Stop() error {
	return ws.server.Stop()
}

// WaitStop waits for the requests in flight after Stop
func (ws *Service) WaitStop(timeout time.Duration) error {
	return ws.server.WaitStop(timeout)
}

// Handler returns the router of the worklist
func (ws *Service) Handler() http.Handler {
	return ws.router
}

func handleOption(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Add("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Add("Access-Control-Allow-Headers", "Origin")
	w.Header().Add("Access-Control-Allow-Headers", "X-Requested-With")
	w.Header().Add("Access-Control-Allow-Headers", "Accept")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNoContent)
}

// Status is a basic health check (GET "/status")
func (ws *Service) Status(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Add("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ListSpecifications returns the ids of the loaded nets (GET "/specifications")
func (ws *Service) ListSpecifications(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	ws.respond(w, http.StatusOK, ws.engine.Specifications())
}

// LoadSpecification loads a net (POST "/specifications").
//
// $ curl -H "Content-Type: application/json" -X POST -d @net.json http://localhost:8080/specifications
func (ws *Service) LoadSpecification(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rep := &definition.DefinitionRep{}
	if !ws.decode(w, r, rep) {
		return
	}

	def, err := ws.engine.LoadSpecification(rep)
	if err != nil {
		ws.fail(w, err)
		return
	}
	ws.respond(w, http.StatusCreated, &IDResponse{ID: def.ID()})
}

// UnloadSpecification removes a net (DELETE "/specifications/:specId")
func (ws *Service) UnloadSpecification(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	if err := ws.engine.UnloadSpecification(ps.ByName("specId")); err != nil {
		ws.fail(w, err)
		return
	}
	w.Header().Add("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusNoContent)
}

// ListCases returns the cases of the engine (GET "/cases")
func (ws *Service) ListCases(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	cases := ws.engine.Cases()
	views := make([]*CaseView, 0, len(cases))
	for _, c := range cases {
		views = append(views, newCaseView(c))
	}
	ws.respond(w, http.StatusOK, views)
}

// LaunchCase creates and starts a case (POST "/cases").
//
// $ curl -H "Content-Type: application/json" -X POST -d '{"specId":"order","data":{"amount":10}}' http://localhost:8080/cases
func (ws *Service) LaunchCase(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := &LaunchRequest{}
	if !ws.decode(w, r, req) {
		return
	}

	resp, err := ws.reqProcessor.LaunchCase(req)
	if err != nil {
		ws.fail(w, err)
		return
	}
	ws.respond(w, http.StatusCreated, resp)
}

// GetCase returns a case (GET "/cases/:caseId")
func (ws *Service) GetCase(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	c, err := ws.engine.Case(ps.ByName("caseId"))
	if err != nil {
		ws.fail(w, err)
		return
	}
	ws.respond(w, http.StatusOK, newCaseView(c))
}

// CaseAction starts, cancels, suspends or resumes a case, or fires one of its
// automatic tasks (POST "/cases/:caseId/:action")
func (ws *Service) CaseAction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req := &CaseRequest{}
	if !ws.decode(w, r, req) {
		return
	}

	resp, err := ws.reqProcessor.CaseAction(ps.ByName("caseId"), ps.ByName("action"), req)
	if err != nil {
		ws.fail(w, err)
		return
	}
	ws.respond(w, http.StatusOK, resp)
}

// ListWorkItems returns the work items of a case (GET "/cases/:caseId/workitems")
func (ws *Service) ListWorkItems(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	items, err := ws.engine.WorkItems(ps.ByName("caseId"))
	if err != nil {
		ws.fail(w, err)
		return
	}

	views := make([]*WorkItemView, 0, len(items))
	for _, wi := range items {
		views = append(views, newWorkItemView(wi))
	}
	ws.respond(w, http.StatusOK, views)
}

// GetWorkItem returns a work item (GET "/workitems/:itemId")
func (ws *Service) GetWorkItem(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	wi, err := ws.engine.WorkItem(ps.ByName("itemId"))
	if err != nil {
		ws.fail(w, err)
		return
	}
	ws.respond(w, http.StatusOK, newWorkItemView(wi))
}

// WorkItemAction applies a transition to a work item (POST "/workitems/:itemId/:action").
//
// $ curl -H "Content-Type: application/json" -X POST -d '{"output":{"approved":true}}' http://localhost:8080/workitems/<id>/complete
func (ws *Service) WorkItemAction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req := &WorkItemRequest{}
	if !ws.decode(w, r, req) {
		return
	}

	view, err := ws.reqProcessor.WorkItemAction(ps.ByName("itemId"), ps.ByName("action"), req)
	if err != nil {
		ws.fail(w, err)
		return
	}
	ws.respond(w, http.StatusOK, view)
}

// decode reads the JSON body into v, an empty body leaves v untouched
func (ws *Service) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (ws *Service) respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Add("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		ws.logger.Errorf("Unable to encode response: %v", err)
	}
}

func (ws *Service) fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		ws.logger.Errorf("Request failed: %v", err)
	} else if ws.logger.DebugEnabled() {
		ws.logger.Debugf("Request rejected [%d]: %v", status, err)
	}

	w.Header().Add("Access-Control-Allow-Origin", "*")
	http.Error(w, err.Error(), status)
}

func statusOf(err error) int {
	var stateErr *model.WorkItemStateError
	var enablementErr *model.EnablementError
	var topologyErr *definition.TopologyError
	var actionErr *unknownActionError

	switch {
	case errors.Is(err, model.ErrCaseNotFound),
		errors.Is(err, model.ErrSpecificationNotFound),
		errors.Is(err, model.ErrWorkItemNotFound),
		errors.As(err, &actionErr):
		return http.StatusNotFound
	case errors.Is(err, model.ErrCaseNotRunning),
		errors.Is(err, model.ErrSpecificationInUse),
		errors.As(err, &stateErr),
		errors.As(err, &enablementErr):
		return http.StatusConflict
	case errors.As(err, &topologyErr), errors.Is(err, errMissingSpecID):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
