package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskfolk/agendo/storage"
)

func decodeJSON(req *http.Request, v any) error {
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding request body: %v", storage.ErrInvalidInput, err)
	}
	return nil
}

func (r *Router) handleListTasks(w http.ResponseWriter, req *http.Request) {
	ownerID, ok := r.requireOwner(w, req)
	if !ok {
		return
	}

	tasks, err := r.storage.ListTasks(req.Context(), ownerID)
	if err != nil {
		r.writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*storage.Task{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (r *Router) handleGetTask(w http.ResponseWriter, req *http.Request) {
	ownerID, ok := r.requireOwner(w, req)
	if !ok {
		return
	}

	task, err := r.storage.GetTask(req.Context(), ownerID, req.PathValue("taskID"))
	if err != nil {
		r.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (r *Router) handleCreateTask(w http.ResponseWriter, req *http.Request) {
	ownerID, ok := r.requireOwner(w, req)
	if !ok {
		return
	}

	var task storage.Task
	if err := decodeJSON(req, &task); err != nil {
		r.writeError(w, err)
		return
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.OwnerID = ownerID

	if err := r.storage.CreateTask(req.Context(), &task); err != nil {
		r.writeError(w, err)
		return
	}

	r.engine.Invalidate()
	r.sync.Bump()

	writeJSON(w, http.StatusCreated, &task)
}

func (r *Router) handleUpdateTask(w http.ResponseWriter, req *http.Request) {
	ownerID, ok := r.requireOwner(w, req)
	if !ok {
		return
	}

	var task storage.Task
	if err := decodeJSON(req, &task); err != nil {
		r.writeError(w, err)
		return
	}

	task.ID = req.PathValue("taskID")
	task.OwnerID = ownerID

	if err := r.storage.UpdateTask(req.Context(), &task); err != nil {
		r.writeError(w, err)
		return
	}

	r.engine.Invalidate()
	r.sync.Bump()

	writeJSON(w, http.StatusOK, &task)
}

func (r *Router) handleDeleteTask(w http.ResponseWriter, req *http.Request) {
	ownerID, ok := r.requireOwner(w, req)
	if !ok {
		return
	}

	if err := r.storage.DeleteTask(req.Context(), ownerID, req.PathValue("taskID")); err != nil {
		r.writeError(w, err)
		return
	}

	r.engine.Invalidate()
	r.sync.Bump()

	w.WriteHeader(http.StatusNoContent)
}
