package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"promptfusion/internal/domain"
	"promptfusion/pkg/zip"
)

// JobArchive downloads a job's results as a zip: inline images as files,
// remote images listed in links.txt, and the job view as manifest.json.
func (a *App) JobArchive(w http.ResponseWriter, r *http.Request) {
	view, err := a.Jobs.Get(r.Context(), a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !view.Job.Status.Terminal() {
		a.fail(w, r, fmt.Errorf("%w: job is %s", domain.ErrInvalidState, view.Job.Status))
		return
	}

	manifest, err := json.MarshalIndent(toViewDTO(view), "", "  ")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	assets := []zip.Asset{{Filename: "manifest.json", Data: manifest, Modified: view.Job.UpdatedAt}}
	var links strings.Builder
	for _, run := range view.Runs {
		for i, out := range run.Outputs {
			name := fmt.Sprintf("%s-%02d", strings.ToLower(string(run.Provider)), i+1)
			if data, ext, ok := decodeDataURI(out.URL); ok {
				assets = append(assets, zip.Asset{Filename: name + ext, Data: data, Modified: out.CreatedAt})
				continue
			}
			fmt.Fprintf(&links, "%s\t%s\n", name, out.URL)
		}
	}
	if links.Len() > 0 {
		assets = append(assets, zip.Asset{Filename: "links.txt", Data: []byte(links.String()), Modified: view.Job.UpdatedAt})
	}

	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", view.Job.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// decodeDataURI unpacks a base64 data: URI into bytes and a file extension.
func decodeDataURI(uri string) ([]byte, string, bool) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", false
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", false
	}
	ext := ".png"
	switch strings.TrimSuffix(meta, ";base64") {
	case "image/jpeg", "image/jpg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	return data, ext, true
}
