// Package conn serves a database catalog over websocket: one JSON request
// envelope per message, dispatched by action, answered with a Response
// envelope. The surface is purely a relay; all semantics live in the table
// engine.
package conn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kivadb/kivadb/internal/db"
)

type RequestAction string

const (
	RequestActionCreateTable RequestAction = "createTable"
	RequestActionDropTable   RequestAction = "dropTable"
	RequestActionListTables  RequestAction = "listTables"
	RequestActionCreateIndex RequestAction = "createIndex"
	RequestActionInsert      RequestAction = "insert"
	RequestActionSelect      RequestAction = "select"
	RequestActionUpdate      RequestAction = "update"
	RequestActionDelete      RequestAction = "delete"
)

type WsRequest struct {
	Action RequestAction `json:"action"`
	ReqId  int           `json:"__kdb_client_req_id__"` // used in kivadb clients
}

var Upgrader = websocket.Upgrader{
	WriteBufferSize: 1024 * 10,
	ReadBufferSize:  1024 * 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// readsOnly reports whether an action leaves catalog state untouched, which
// decides whether the persistence debounce is poked.
func readsOnly(action RequestAction) bool {
	return action == RequestActionSelect || action == RequestActionListTables
}

// HandleMessage decodes one request frame and produces its response. A frame
// that isn't valid json never reaches a handler.
func HandleMessage(database *db.DB, message []byte) (Response, RequestAction) {
	var req WsRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest,
			fmt.Sprintf("Invalid request: %s", err.Error())), req.Action
	}
	res := Dispatch(database, req.Action, message)
	res.ReqId = req.ReqId
	return res, req.Action
}

func Dispatch(database *db.DB, action RequestAction, raw []byte) Response {
	switch action {
	case RequestActionCreateTable:
		return CreateTableReqHandler(database, raw)
	case RequestActionDropTable:
		return DropTableReqHandler(database, raw)
	case RequestActionListTables:
		return ListTablesReqHandler(database, raw)
	case RequestActionCreateIndex:
		return CreateIndexReqHandler(database, raw)
	case RequestActionInsert:
		return InsertReqHandler(database, raw)
	case RequestActionSelect:
		return SelectReqHandler(database, raw)
	case RequestActionUpdate:
		return UpdateReqHandler(database, raw)
	case RequestActionDelete:
		return DeleteReqHandler(database, raw)
	}
	return NewErrorResponse(http.StatusBadRequest,
		fmt.Sprintf("Unknown action %q", action))
}

type ListenOptions struct {
	Port int
	// WritePath is where the database file is persisted; empty means
	// in-memory only.
	WritePath     string
	WriteInterval time.Duration
}

// Listen serves the catalog until SIGINT/SIGTERM, persisting on a debounced
// ticker and once more on shutdown.
func Listen(database *db.DB, opts ListenOptions) error {
	log := database.Logger()
	exit := make(chan os.Signal, 2)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", "err", err)
			return
		}
		defer ws.Close()
		log.Info("new connection established", "remote", ws.RemoteAddr().String())

		for {
			_, message, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error("unexpected close", "err", err)
				} else {
					log.Debug("connection closed", "err", err)
				}
				return
			}

			res, action := HandleMessage(database, message)

			if err := ws.WriteJSON(res); err != nil {
				log.Error("writing response failed", "err", err)
				return
			}

			if res.Status < http.StatusBadRequest && !readsOnly(action) {
				database.MarkChanged()
			}
		}
	})

	s := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: mux,
	}

	go func() {
		err := s.ListenAndServe()
		if err != http.ErrServerClosed {
			log.Error("server stopped", "err", err)
			exit <- syscall.SIGTERM
		}
	}()

	stop := make(chan struct{})
	ticker_done := make(chan struct{})
	if opts.WritePath != "" {
		write_ticker := time.NewTicker(opts.WriteInterval)
		go func() {
			defer write_ticker.Stop()
			defer close(ticker_done)
			last_write := database.Changes()
			for {
				select {
				case <-write_ticker.C:
					if database.Changes() == last_write {
						continue
					}
					log.Debug("writing database to file", "path", opts.WritePath)
					if err := db.Save(database, opts.WritePath, ""); err != nil {
						log.Error("periodic write failed", "err", err)
						continue
					}
					last_write = database.Changes()
				case <-stop:
					return
				}
			}
		}()
	} else {
		close(ticker_done)
	}

	log.Info("kivadb listening", "port", opts.Port)
	<-exit
	log.Debug("shutting down")
	signal.Stop(exit)
	close(stop)
	<-ticker_done
	if err := s.Shutdown(context.Background()); err != nil {
		return err
	}
	if opts.WritePath != "" {
		return db.Save(database, opts.WritePath, "")
	}
	return nil
}
