package web

import (
	"log"
	"net/http"
	"os"
	"path"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/vlazed/smh_bridge/status"
)

// ServerDirectory is the directory of animation files the handlers browse.
var ServerDirectory string

func StartServer(addr string, dir string, webPath string) error {
	ServerDirectory = dir

	r := mux.NewRouter()
	r.HandleFunc("/json/files", HandlerAjaxFiles)
	r.HandleFunc("/json/files/{file}", HandlerAjaxFile)
	r.HandleFunc("/json/files/{file}/{entity}", HandlerAjaxFileEntity)
	r.HandleFunc("/dump/files/{file}", HandlerDumpFile)
	r.HandleFunc("/dump/files/{file}/{entity}", HandlerDumpFileEntity)
	r.HandleFunc("/upload/files/{file}", HandlerUploadFile)
	r.HandleFunc("/ws/status", status.HandlerWs)

	r.PathPrefix("/").Handler(http.FileServer(http.Dir(path.Join(webPath, "data"))))

	h := handlers.RecoveryHandler()(r)
	h = handlers.LoggingHandler(os.Stdout, r)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
