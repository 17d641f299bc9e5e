// Package upload stores chat attachments on disk and hands back the
// URL a message's fileUrl field carries.
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/varun72004/Twin-Talk/internal/auth"
)

// allowedTypes maps accepted content types to the extension stored
// files get. Only the media the chat can render is accepted.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"audio/webm": ".webm",
	"audio/ogg":  ".ogg",
	"audio/mpeg": ".mp3",
	"audio/wav":  ".wav",
	"audio/mp4":  ".m4a",
}

// Handler receives multipart uploads and writes them under dir with
// generated names. It expects to run behind the auth middleware.
type Handler struct {
	dir     string
	maxSize int64
}

func NewHandler(dir string, maxSize int64) (*Handler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: create dir: %w", err)
	}
	return &Handler{dir: dir, maxSize: maxSize}, nil
}

type uploadResponse struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Upload handles POST /api/upload. The response fileUrl is what the
// client puts in a send-message frame.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d byte limit", h.maxSize))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart form with a 'file' field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxSize {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", h.maxSize))
		return
	}

	contentType, ext, err := h.resolveType(file, header)
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	// Client-supplied names never reach the filesystem.
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(h.dir, name))
	if err != nil {
		slog.Error("upload create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not store file")
		return
	}

	size, err := io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filepath.Join(h.dir, name))
		slog.Error("upload write failed", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "could not store file")
		return
	}

	userID := ""
	if claims, ok := auth.ClaimsFrom(r.Context()); ok {
		userID = claims.UserID
	}
	slog.Info("file uploaded", "user", userID, "file", name, "type", contentType, "size", size)

	writeJSON(w, http.StatusCreated, uploadResponse{
		FileURL:  "/uploads/" + name,
		FileName: name,
		FileType: contentType,
		FileSize: size,
	})
}

// resolveType sniffs the payload and checks it against the allowlist.
// The declared header type is only trusted when sniffing is
// inconclusive for that family (webm audio sniffs as video/webm).
func (h *Handler) resolveType(file multipart.File, header *multipart.FileHeader) (string, string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", "", errors.New("could not read file")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", "", errors.New("could not read file")
	}

	sniffed := http.DetectContentType(buf[:n])
	if ext, ok := allowedTypes[sniffed]; ok {
		return sniffed, ext, nil
	}

	declared := header.Header.Get("Content-Type")
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = declared[:i]
	}
	if ext, ok := allowedTypes[declared]; ok && sameFamily(sniffed, declared) {
		return declared, ext, nil
	}

	return "", "", fmt.Errorf("unsupported file type %q", sniffed)
}

// sameFamily accepts a declared audio type when the sniffer saw the
// matching container as video or an opaque stream.
func sameFamily(sniffed, declared string) bool {
	if strings.HasPrefix(declared, "audio/") {
		return strings.HasPrefix(sniffed, "audio/") ||
			strings.HasPrefix(sniffed, "video/") ||
			sniffed == "application/octet-stream"
	}
	return strings.HasPrefix(sniffed, declared[:strings.IndexByte(declared, '/')])
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
