package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nexodrive/internal/auth"
	"nexodrive/internal/domain"
	"nexodrive/internal/service"
)

// UploadResult представляет результат загрузки одного файла
type UploadResult struct {
	File         *domain.File `json:"file,omitempty"`
	Error        string       `json:"error,omitempty"`
	IsNewVersion bool         `json:"isNewVersion,omitempty"`
	Version      int          `json:"version,omitempty"`
}

// MultiUploadResponse представляет ответ на множественную загрузку
type MultiUploadResponse struct {
	Results []UploadResult `json:"results"`
}

type FileHandler struct {
	fileService    *service.FileService
	previewService *service.PreviewService
}

func NewFileHandler(fileService *service.FileService, previewService *service.PreviewService) *FileHandler {
	return &FileHandler{
		fileService:    fileService,
		previewService: previewService,
	}
}

// UploadFile обрабатывает загрузку файлов
func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	results := make([]UploadResult, len(files))
	for i, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			results[i] = UploadResult{Error: err.Error()}
			continue
		}
		defer file.Close()

		uploadedFile, err := h.fileService.UploadFile(r.Context(), fileHeader, file, accountID)
		if err != nil {
			results[i] = UploadResult{Error: uploadErrorMessage(err)}
			continue
		}

		results[i] = UploadResult{
			File:         uploadedFile,
			IsNewVersion: uploadedFile.CurrentVersion > 1,
			Version:      uploadedFile.CurrentVersion,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MultiUploadResponse{Results: results})
}

// uploadErrorMessage различает для клиента "нет места", "аккаунт не найден"
// и временные сбои.
func uploadErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrQuotaExceeded):
		return "not enough storage space available"
	case errors.Is(err, service.ErrAccountNotFound):
		return "account unrecognized"
	default:
		return err.Error()
	}
}

// ListFiles возвращает файлы аккаунта
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	files, err := h.fileService.GetFilesByOwner(r.Context(), accountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}

// DownloadFile отдает текущую версию файла
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	download, err := h.fileService.DownloadFile(r.Context(), fileUUID, accountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", download.File.MIMEType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(download.File.Name)))
	w.Header().Set("Content-Length", strconv.FormatInt(int64(len(download.Data)), 10))
	w.Write(download.Data)
}

// RenameFile переименовывает файл
func (h *FileHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	var req struct {
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.fileService.RenameFile(r.Context(), fileUUID, req.NewName, accountID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteFile перемещает файл в корзину
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	if err := h.fileService.DeleteFile(r.Context(), fileUUID, accountID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetFileVersions возвращает историю версий файла
func (h *FileHandler) GetFileVersions(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	versions, err := h.fileService.GetFileVersions(r.Context(), fileUUID, accountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(versions)
}

// DeleteVersion окончательно удаляет старую версию файла
func (h *FileHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	versionNumber, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	if err := h.fileService.DeleteVersion(r.Context(), fileUUID, versionNumber, accountID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetPreview отдает превью изображения
func (h *FileHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	// Проверяем доступ к самому файлу
	if _, err := h.fileService.GetFileInfo(r.Context(), fileUUID, accountID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	preview, err := h.previewService.GetPreview(r.Context(), fileUUID)
	if err != nil {
		http.Error(w, "Preview not found", http.StatusNotFound)
		return
	}
	defer preview.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	io.Copy(w, preview)
}
