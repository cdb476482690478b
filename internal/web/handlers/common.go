package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kozaktomas/roll-call/internal/constants"
)

// errInvalidForm is a shared error message for unparseable multipart forms.
const errInvalidForm = "failed to parse multipart form"

// validate checks request DTOs. Field names in messages come from the form tag.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validationMessage turns the first validation failure into a user-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt", "gte", "lt", "lte", "min", "max":
		return fmt.Sprintf("%s must be %s %s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// validateRequest runs struct validation and writes a 400 on failure.
func validateRequest(w http.ResponseWriter, req any) bool {
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// uploadedFile is a multipart file read fully into memory.
type uploadedFile struct {
	Filename string
	Data     []byte
}

// readUploadedFiles reads every file of a multipart field into memory.
func readUploadedFiles(files []*multipart.FileHeader) ([]uploadedFile, error) {
	out := make([]uploadedFile, 0, len(files))
	for _, fh := range files {
		if err := func() error {
			f, err := fh.Open()
			if err != nil {
				return fmt.Errorf("failed to open file: %s", sanitizeForLog(fh.Filename))
			}
			defer f.Close()

			data, err := io.ReadAll(f)
			if err != nil {
				return fmt.Errorf("failed to read file: %s", sanitizeForLog(fh.Filename))
			}
			out = append(out, uploadedFile{Filename: fh.Filename, Data: data})
			return nil
		}(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// parsePhotos parses a multipart form and returns its "files" as seekable streams.
// It writes the error response itself and returns nil on failure.
func parsePhotos(w http.ResponseWriter, r *http.Request) []io.ReadSeeker {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidForm)
			return nil
		}
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return nil
	}
	if len(headers) > constants.MaxPhotosPerRequest {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("at most %d photos per request", constants.MaxPhotosPerRequest))
		return nil
	}

	files, err := readUploadedFiles(headers)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil
	}

	photos := make([]io.ReadSeeker, len(files))
	for i, f := range files {
		photos[i] = bytes.NewReader(f.Data)
	}
	return photos
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
