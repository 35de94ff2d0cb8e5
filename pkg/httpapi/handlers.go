package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BlackLotus/nomad/pkg/controller"
	"github.com/BlackLotus/nomad/pkg/model"
)

// uploadHandler adapts pkg/controller's UploadController operations onto
// HTTP, grounded on dittofs's pkg/controlplane/api/handlers shape: thin
// per-route functions that decode the request, call straight into the
// core, and translate the result/error through response.go.
type uploadHandler struct {
	ctrl *controller.Controller
}

func newUploadHandler(ctrl *controller.Controller) *uploadHandler {
	return &uploadHandler{ctrl: ctrl}
}

func (h *uploadHandler) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UploadName      string `json:"upload_name"`
		PublishDirectly bool   `json:"publish_directly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "decoding request body: "+err.Error())
		return
	}

	upload, err := h.ctrl.Create(r.Context(), actorFromContext(r.Context()), controller.CreateParams{
		UploadName:      body.UploadName,
		PublishDirectly: body.PublishDirectly,
	})
	if err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, upload)
}

func (h *uploadHandler) get(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	entries, err := h.ctrl.Store.ListEntriesByUpload(r.Context(), uploadID)
	if err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *uploadHandler) addFiles(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	var body struct {
		Source    string `json:"source"`
		TargetDir string `json:"target_dir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body: "+err.Error())
		return
	}
	if err := h.ctrl.AddFiles(r.Context(), actorFromContext(r.Context()), uploadID, body.Source, body.TargetDir); err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (h *uploadHandler) deleteFiles(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body: "+err.Error())
		return
	}
	if err := h.ctrl.DeleteFiles(r.Context(), actorFromContext(r.Context()), uploadID, body.Path); err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (h *uploadHandler) setMetadata(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	var p controller.SetUploadMetadataParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body: "+err.Error())
		return
	}
	if err := h.ctrl.SetUploadMetadata(r.Context(), actorFromContext(r.Context()), uploadID, p); err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *uploadHandler) publish(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	var p controller.PublishParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "decoding request body: "+err.Error())
		return
	}
	if err := h.ctrl.Publish(r.Context(), actorFromContext(r.Context()), uploadID, p); err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *uploadHandler) publishExternally(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	var p controller.PublishExternallyParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request body: "+err.Error())
		return
	}
	if err := h.ctrl.PublishExternally(r.Context(), actorFromContext(r.Context()), uploadID, p); err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *uploadHandler) reprocess(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	if err := h.ctrl.Reprocess(r.Context(), actorFromContext(r.Context()), uploadID); err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

func (h *uploadHandler) liftEmbargo(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	if err := h.ctrl.LiftEmbargo(r.Context(), actorFromContext(r.Context()), uploadID); err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *uploadHandler) delete(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	if err := h.ctrl.Delete(r.Context(), actorFromContext(r.Context()), uploadID); err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *uploadHandler) exportBundle(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	p := controller.ExportBundleParams{
		Options: parseExportOptions(r),
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+uploadID+`.bundle.zip"`)
	if err := h.ctrl.ExportBundle(r.Context(), actorFromContext(r.Context()), uploadID, p, w); err != nil {
		writeAppErr(r.Context(), w, err)
		return
	}
}

func parseExportOptions(r *http.Request) model.ExportOptions {
	q := r.URL.Query()
	return model.ExportOptions{
		IncludeRawFiles:     q.Get("include_raw_files") == "true",
		IncludeArchiveFiles: q.Get("include_archive_files") == "true",
		IncludeDatasets:     q.Get("include_datasets") == "true",
	}
}

// healthHandler serves unauthenticated liveness/readiness probes, grounded
// on dittofs's handlers.HealthHandler.
type healthHandler struct{}

func (healthHandler) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
