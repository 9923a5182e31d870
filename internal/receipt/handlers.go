package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/shopping-tracker/internal/parser"
	"github.com/zombor/shopping-tracker/internal/scanning"
)

// maxUploadSize bounds receipt uploads; high-resolution phone photos run to tens of MB
const maxUploadSize = int64(50 << 20)

// maxJSONBodySize bounds edit and settlement request bodies
const maxJSONBodySize = int64(1 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes. Anything that is not a
// known client error is a server failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, parser.ErrUnsupportedMerchant),
		errors.Is(err, parser.ErrMalformedReceipt),
		errors.Is(err, scanning.ErrEmptyTranscript):
		return http.StatusUnprocessableEntity
	case errors.Is(err, scanning.ErrUnsupportedContent):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrSettled):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidEdit),
		errors.Is(err, ErrInvalidSettlement),
		errors.Is(err, ErrUnknownPurchaser):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into v and writes the error
// response itself when it fails
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body is too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleHealth reports liveness; it needs no auth so probes can reach it
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListReceipts returns a list of all receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// contentTypeFor guesses a MIME type from the file extension when the client sent none
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 50MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	receipt, err := s.service.ProcessReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			writeError(w, code, "Error processing receipt. Please try again.")
			return
		}
		writeError(w, code, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Receipt not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile returns the uploaded file for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.PathValue("id"))
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(r.PathValue("id")); err != nil {
		slog.Error("Error deleting receipt", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateItem applies a user correction to one item
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var update ItemUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	receipt, err := s.service.UpdateItem(r.PathValue("id"), r.PathValue("itemID"), update)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleSetPurchaser assigns a purchaser to a receipt
func (s *Server) handleSetPurchaser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Purchaser string `json:"purchaser"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	receipt, err := s.service.SetPurchaser(r.PathValue("id"), req.Purchaser)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleListSettlements returns a list of all settlements
func (s *Server) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	settlements, err := s.service.ListSettlements()
	if err != nil {
		slog.Error("Error listing settlements", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settlements)
}

// handleCreateSettlement settles a set of receipts
func (s *Server) handleCreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiptIDs []string `json:"receipt_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	settlement, err := s.service.CreateSettlement(req.ReceiptIDs)
	if err != nil {
		slog.Error("Error creating settlement", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, settlement)
}

// handleGetSettlement returns a settlement with its receipts
func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	settlement, receipts, err := s.service.GetSettlementWithReceipts(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Settlement not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settlement": settlement,
		"receipts":   receipts,
	})
}

// handleBalances returns what each member is owed across unsettled receipts
func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, sharedTotal, err := s.service.OutstandingBalances()
	if err != nil {
		slog.Error("Error computing balances", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Balances    []Balance       `json:"balances"`
		SharedTotal decimal.Decimal `json:"shared_total"`
	}{balances, sharedTotal})
}
