package service

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	witsml "github.com/nilsbenson/witsml-server"
	"github.com/nilsbenson/witsml-server/db"
	"github.com/nilsbenson/witsml-server/model/channeldata"
	"github.com/nilsbenson/witsml-server/model/log"
	"github.com/nilsbenson/witsml-server/model/well"
	"github.com/nilsbenson/witsml-server/model/wellbore"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// APIServer serves the administrative surface: object listings, log data
// retrieval, and deletes.
type APIServer struct {
	env  witsml.Environment
	logs *log.Adapter
}

func NewAPIServer(env witsml.Environment) *APIServer {
	return &APIServer{env: env, logs: log.NewAdapter(env)}
}

// GetApp wires the admin routes.
func (as *APIServer) GetApp() *gimlet.APIApp {
	app := gimlet.NewApp()
	app.SetPrefix("/admin")

	app.AddRoute("/status").Version(1).Get().Handler(as.getStatus)
	app.AddRoute("/wells").Version(1).Get().Handler(as.listWells)
	app.AddRoute("/wellbores").Version(1).Get().Handler(as.listWellbores)
	app.AddRoute("/wellbores").Version(1).Delete().Handler(as.deleteWellbore)
	app.AddRoute("/logs").Version(1).Get().Handler(as.listLogs)
	app.AddRoute("/logs").Version(1).Delete().Handler(as.deleteLog)
	app.AddRoute("/logs/data").Version(1).Get().Handler(as.getLogData)
	app.AddRoute("/chunks").Version(1).Get().Handler(as.listChunks)

	return app
}

type responseError struct {
	Message string `json:"message"`
}

func (as *APIServer) loggedError(w http.ResponseWriter, r *http.Request, err error) {
	grip.Error(message.WrapError(err, message.Fields{
		"method": r.Method,
		"url":    r.URL.String(),
	}))
	gimlet.WriteJSONInternalError(w, responseError{Message: err.Error()})
}

// filterQuery translates the optional ?filter expression into a store query.
func filterQuery(r *http.Request) (db.Q, error) {
	filter, err := db.RawQuery(r.URL.Query().Get("filter"))
	if err != nil {
		return db.Q{}, err
	}
	return db.Query(filter), nil
}

func (as *APIServer) getStatus(w http.ResponseWriter, r *http.Request) {
	gimlet.WriteJSON(w, struct {
		Version  string `json:"version"`
		Database string `json:"database"`
	}{
		Version:  witsml.ClientVersion,
		Database: as.env.Settings().Database.DB,
	})
}

func (as *APIServer) listWells(w http.ResponseWriter, r *http.Request) {
	q, err := filterQuery(r)
	if err != nil {
		gimlet.WriteJSONError(w, responseError{Message: err.Error()})
		return
	}

	wells, err := well.Find(r.Context(), q)
	if err != nil {
		as.loggedError(w, r, err)
		return
	}
	gimlet.WriteJSON(w, wells)
}

func (as *APIServer) listWellbores(w http.ResponseWriter, r *http.Request) {
	q, err := filterQuery(r)
	if err != nil {
		gimlet.WriteJSONError(w, responseError{Message: err.Error()})
		return
	}

	wellbores, err := wellbore.Find(r.Context(), q)
	if err != nil {
		as.loggedError(w, r, err)
		return
	}
	gimlet.WriteJSON(w, wellbores)
}

func (as *APIServer) deleteWellbore(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		gimlet.WriteJSONError(w, responseError{Message: "uri is required"})
		return
	}

	if err := wellbore.RemoveCascade(r.Context(), uri, as.logs); err != nil {
		as.loggedError(w, r, err)
		return
	}
	gimlet.WriteJSON(w, struct {
		Deleted string `json:"deleted"`
	}{uri})
}

func (as *APIServer) listLogs(w http.ResponseWriter, r *http.Request) {
	q, err := filterQuery(r)
	if err != nil {
		gimlet.WriteJSONError(w, responseError{Message: err.Error()})
		return
	}

	logs, err := log.Find(r.Context(), q)
	if err != nil {
		as.loggedError(w, r, err)
		return
	}
	gimlet.WriteJSON(w, logs)
}

func (as *APIServer) deleteLog(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		gimlet.WriteJSONError(w, responseError{Message: "uri is required"})
		return
	}

	err := as.logs.DeleteLog(r.Context(), uri)
	if channeldata.IsKind(err, channeldata.ErrNotFound) {
		gimlet.WriteJSONResponse(w, http.StatusNotFound, responseError{Message: err.Error()})
		return
	}
	if err != nil {
		as.loggedError(w, r, err)
		return
	}
	gimlet.WriteJSON(w, struct {
		Deleted string `json:"deleted"`
	}{uri})
}

func (as *APIServer) getLogData(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	uri := params.Get("uri")
	if uri == "" {
		gimlet.WriteJSONError(w, responseError{Message: "uri is required"})
		return
	}

	q := log.Query{URI: uri, ReturnElements: params.Get("returnElements")}
	if m := params.Get("mnemonics"); m != "" {
		q.Mnemonics = strings.Split(m, ",")
	}
	for param, dest := range map[string]**float64{
		"startIndex": &q.StartIndex,
		"endIndex":   &q.EndIndex,
	} {
		v := params.Get(param)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			gimlet.WriteJSONError(w, responseError{Message: errors.Wrapf(err, "parsing %s", param).Error()})
			return
		}
		*dest = utility.ToFloat64Ptr(f)
	}
	if v := params.Get("latestValues"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			gimlet.WriteJSONError(w, responseError{Message: errors.Wrap(err, "parsing latestValues").Error()})
			return
		}
		q.LatestValues = n
	}

	res, err := as.logs.QueryLog(r.Context(), q)
	if err != nil {
		as.loggedError(w, r, err)
		return
	}
	if res == nil {
		gimlet.WriteJSONResponse(w, http.StatusNotFound, responseError{Message: "log not found"})
		return
	}
	gimlet.WriteJSON(w, res)
}

// listChunks returns the chunk inventory, payloads excluded. An optional
// ?uri narrows to one log and composes with ?filter.
func (as *APIServer) listChunks(w http.ResponseWriter, r *http.Request) {
	filter, err := db.RawQuery(r.URL.Query().Get("filter"))
	if err != nil {
		gimlet.WriteJSONError(w, responseError{Message: err.Error()})
		return
	}
	if uri := r.URL.Query().Get("uri"); uri != "" {
		for k, v := range db.CaseInsensitiveEq(channeldata.URIKey, uri) {
			filter[k] = v
		}
	}

	chunks := []channeldata.Chunk{}
	q := db.Query(filter).Project(bson.M{channeldata.DataKey: 0})
	if err := db.FindAllQ(r.Context(), channeldata.Collection, q, &chunks); err != nil {
		as.loggedError(w, r, err)
		return
	}
	gimlet.WriteJSON(w, chunks)
}
