package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/humanmadecert/hmcert/auth"
	"github.com/humanmadecert/hmcert/captcha"
	"github.com/humanmadecert/hmcert/catalogue"
	"github.com/humanmadecert/hmcert/fingerprint"
	"github.com/humanmadecert/hmcert/storage"
)

const maxBodyBytes = 1 << 20

// PresignRequest is the JSON body of POST /api/upload. The fileName and
// fileType spellings are accepted as aliases.
type PresignRequest struct {
	Filename     string `json:"filename"`
	FileName     string `json:"fileName"`
	ContentType  string `json:"contentType"`
	FileType     string `json:"fileType"`
	FileSize     int64  `json:"fileSize"`
	CaptchaToken string `json:"captchaToken"`
}

func (p PresignRequest) key() string {
	if p.Filename != "" {
		return p.Filename
	}
	return p.FileName
}

func (p PresignRequest) contentType() string {
	if p.ContentType != "" {
		return p.ContentType
	}
	return p.FileType
}

// PresignResponse carries the presigned URL under both names clients use.
type PresignResponse struct {
	URL       string `json:"url"`
	SignedURL string `json:"signedUrl"`
}

// RecordRequest is the JSON body of POST /api/uploads.
type RecordRequest struct {
	ArtistName string `json:"artistName"`
	TrackName  string `json:"trackName"`
	FolderHash string `json:"folderHash"`
	Email      string `json:"email"`
}

// DashboardTrack is a track with the abbreviated identifiers dashboards show.
type DashboardTrack struct {
	catalogue.Track
	FolderHashShort string `json:"folderHashShort"`
	ArtistNameShort string `json:"artistNameShort"`
	TxHashShort     string `json:"txHashShort"`
}

func (s *Server) countPresign(result string) {
	if s.metrics != nil {
		s.metrics.Presigns.WithLabelValues(result).Inc()
	}
}

func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request) {
	var req PresignRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.countPresign("invalid")
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileSize <= 0 || req.FileSize > s.maxFileSize {
		s.countPresign("invalid")
		writeErr(w, http.StatusBadRequest, "File size exceeds the 5GB limit or is missing.")
		return
	}

	if s.captcha != nil {
		if err := s.captcha.Check(r.Context(), req.CaptchaToken, clientIP(r)); err != nil {
			if errors.Is(err, captcha.ErrUnavailable) {
				s.log.Error("captcha verification unavailable", zap.Error(err))
				s.countPresign("error")
				writeErr(w, http.StatusServiceUnavailable, "Security verification is unavailable. Please try again later.")
				return
			}
			s.countPresign("captcha_rejected")
			writeErr(w, http.StatusForbidden, "Security verification failed. Please try again.")
			return
		}
	}

	url, err := s.store.PresignPut(r.Context(), storage.PresignRequest{
		Key:         req.key(),
		ContentType: req.contentType(),
		Size:        req.FileSize,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) || errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrMissingSize) {
			s.countPresign("invalid")
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("presign failed", zap.String("key", req.key()), zap.Error(err))
		s.countPresign("error")
		writeErr(w, http.StatusInternalServerError, "Failed to generate signed URL")
		return
	}
	s.countPresign("ok")
	writeJSON(w, http.StatusOK, PresignResponse{URL: url, SignedURL: url})
}

func (s *Server) handleRecordUpload(w http.ResponseWriter, r *http.Request) {
	var authorID, userName string
	if r.Header.Get("Authorization") != "" {
		claims, err := s.authenticate(r)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		authorID, userName = claims.Subject, claims.Name
	}

	var req RecordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !fingerprint.IsValid(req.FolderHash) {
		writeErr(w, http.StatusBadRequest, "folderHash must be 64 lowercase hex characters")
		return
	}
	if strings.TrimSpace(req.TrackName) == "" || strings.TrimSpace(req.ArtistName) == "" {
		writeErr(w, http.StatusBadRequest, "artistName and trackName are required")
		return
	}

	track := &catalogue.Track{
		Title:      req.TrackName,
		ArtistName: req.ArtistName,
		UserName:   userName,
		Email:      req.Email,
		AuthorID:   authorID,
		FolderHash: req.FolderHash,
	}
	if err := s.cat.AddTrack(r.Context(), track); err != nil {
		if errors.Is(err, catalogue.ErrDuplicateTrack) {
			writeErr(w, http.StatusConflict, "a track with this folder hash is already registered")
			return
		}
		s.log.Error("record upload failed", zap.String("folder_hash", req.FolderHash), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if s.metrics != nil {
		s.metrics.UploadsRecorded.Inc()
	}
	writeJSON(w, http.StatusCreated, track)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.cat.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.log.Error("search failed", zap.Error(err))
		writeJSON(w, http.StatusOK, catalogue.SearchResults{Tracks: []catalogue.TrackResult{}, Users: []catalogue.User{}})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	claims, err := s.authenticate(r)
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tracks, err := s.cat.TracksByAuthor(r.Context(), claims.Subject)
	if err != nil {
		s.log.Error("dashboard query failed", zap.String("author_id", claims.Subject), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal server error")
		return
	}
	out := make([]DashboardTrack, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, DashboardTrack{
			Track:           t,
			FolderHashShort: catalogue.Abbreviate(t.FolderHash),
			ArtistNameShort: catalogue.Abbreviate(t.ArtistName),
			TxHashShort:     catalogue.Abbreviate(t.TxHash),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": out})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if !fingerprint.IsValid(hash) {
		writeErr(w, http.StatusBadRequest, "invalid folder hash")
		return
	}
	t, err := s.cat.TrackByHash(r.Context(), hash)
	if errors.Is(err, catalogue.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "track not found")
		return
	}
	if err != nil {
		s.log.Error("track lookup failed", zap.String("folder_hash", hash), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) authenticate(r *http.Request) (*auth.Claims, error) {
	if s.auth == nil {
		return nil, auth.ErrUnauthorized
	}
	return s.auth.FromRequest(r)
}
