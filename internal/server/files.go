package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"taskdesk/internal/auth"
	"taskdesk/internal/domain"
)

const maxAttachmentBytes = 16 << 20

// registerAttachmentRoutes mounts the multipart upload and the raw
// download directly on chi; both sit behind the auth middleware like
// every other route under the base path.
func registerAttachmentRoutes(router chi.Router, basePath string, cfg Config) {
	router.Post(path.Join(basePath, "/tasks/{task_id}/attachments"), func(w http.ResponseWriter, r *http.Request) {
		pc, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "not authorized to access this route"))
			return
		}
		t, err := cfg.Repo.GetTask(r.Context(), chi.URLParam(r, "task_id"))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		if !auth.CanMutateTask(pc, t) {
			respondStatusError(w, handleError(auth.ForbiddenError{Reason: "not assigned to this task"}))
			return
		}
		if err := r.ParseMultipartForm(maxAttachmentBytes); err != nil {
			respondStatusError(w, badRequest("multipart form with a file field is required"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondStatusError(w, badRequest("file field is required"))
			return
		}
		defer file.Close()
		key, err := cfg.Blobs.Put(io.LimitReader(file, maxAttachmentBytes))
		if err != nil {
			cfg.Log.Error().Err(err).Msg("store attachment blob")
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal error"))
			return
		}
		att, err := cfg.Repo.AddAttachment(r.Context(), domain.Attachment{
			TaskID:     t.ID,
			Filename:   header.Filename,
			BlobKey:    key,
			UploadedBy: pc.ID,
		})
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		respondJSON(w, http.StatusCreated, envelope[domain.Attachment]{Success: true, Data: att})
	})

	router.Get(path.Join(basePath, "/tasks/{task_id}/attachments/{attachment_id}"), func(w http.ResponseWriter, r *http.Request) {
		pc, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "not authorized to access this route"))
			return
		}
		t, err := cfg.Repo.GetTask(r.Context(), chi.URLParam(r, "task_id"))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		if !auth.CanReadTask(pc, t) {
			respondStatusError(w, handleError(auth.ForbiddenError{Reason: "not assigned to this task"}))
			return
		}
		attachmentID := chi.URLParam(r, "attachment_id")
		var found *domain.Attachment
		for i := range t.Attachments {
			if t.Attachments[i].ID == attachmentID {
				found = &t.Attachments[i]
				break
			}
		}
		if found == nil {
			respondStatusError(w, newAPIError(http.StatusNotFound, "resource not found"))
			return
		}
		blobReader, err := cfg.Blobs.Open(found.BlobKey)
		if err != nil {
			cfg.Log.Error().Err(err).Str("blob_key", found.BlobKey).Msg("open attachment blob")
			respondStatusError(w, newAPIError(http.StatusNotFound, "resource not found"))
			return
		}
		defer blobReader.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		// FormatMediaType escapes quotes and encodes control
		// characters so a stored filename cannot mangle the header.
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": found.Filename}))
		io.Copy(w, blobReader)
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
