package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/UkralStul/carreras-sync/internal/blob"
)

const maxUploadMemory = 32 << 20

// form - разобранное тело запроса: JSON-поля и приложенные файлы.
type form struct {
	files map[string][]blob.File
}

func (f form) all(field string) []blob.File { return f.files[field] }

func (f form) one(field string) *blob.File {
	if files := f.files[field]; len(files) > 0 {
		return &files[0]
	}
	return nil
}

// bind читает JSON-тело или multipart-форму: поле payload с JSON и файлы.
func bind(r *http.Request, v any) (form, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return form{}, decode(r, v)
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return form{}, badRequest(err)
	}
	if payload := r.FormValue("payload"); payload != "" {
		if err := json.Unmarshal([]byte(payload), v); err != nil {
			return form{}, badRequest(err)
		}
	}
	out := form{files: map[string][]blob.File{}}
	for field, headers := range r.MultipartForm.File {
		for _, h := range headers {
			f, err := readFile(h)
			if err != nil {
				return form{}, badRequest(err)
			}
			out.files[field] = append(out.files[field], f)
		}
	}
	return out, nil
}

func readFile(h *multipart.FileHeader) (blob.File, error) {
	src, err := h.Open()
	if err != nil {
		return blob.File{}, fmt.Errorf("open %s: %w", h.Filename, err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return blob.File{}, fmt.Errorf("read %s: %w", h.Filename, err)
	}
	contentType := h.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return blob.File{Name: h.Filename, ContentType: contentType, Data: data}, nil
}
