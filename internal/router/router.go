// Package router defines the HTTP surface of the photo service: user
// registration and login, photo upload and download, listings, deletion
// and statistics endpoints.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/photoapp/internal/auth"
	"github.com/patric-chuzhbe/photoapp/internal/authenticator"
	"github.com/patric-chuzhbe/photoapp/internal/gzippedhttp"
	"github.com/patric-chuzhbe/photoapp/internal/ipchecker"
	"github.com/patric-chuzhbe/photoapp/internal/logger"
	"github.com/patric-chuzhbe/photoapp/internal/metrics"
	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/service"
)

// Uploads above this limit spill to temporary files while parsing the
// multipart form.
const maxUploadMemory = 32 << 20

// The form field carrying the photo bytes in POST /api/assets.
const uploadFieldName = "photo"

type tokenIssuer interface {
	IssueToken(userID int64) (string, *http.Cookie, error)
}

// Router holds the service and the helpers the HTTP handlers need.
type Router struct {
	service   *service.Service
	tokens    tokenIssuer
	ipChecker *ipchecker.IPChecker
	validate  *validator.Validate
}

// New builds the chi mux with all routes and middleware wired in.
// The metrics endpoint is served outside the auth chain.
func New(
	srv *service.Service,
	theAuth authenticator.Authenticator,
	tokens tokenIssuer,
	ipChecker *ipchecker.IPChecker,
) http.Handler {
	myRouter := &Router{
		service:   srv,
		tokens:    tokens,
		ipChecker: ipChecker,
		validate:  validator.New(),
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.UngzipJSONAndTextHTMLRequest,
	)

	router.With(gzippedhttp.GzipResponse).Post(`/api/user/register`, myRouter.PostApiuserregister)
	router.With(gzippedhttp.GzipResponse).Post(`/api/user/login`, myRouter.PostApiuserlogin)

	router.With(
		theAuth.AuthenticateUser,
		theAuth.RequireUser,
	).Post(`/api/assets`, myRouter.PostApiassets)
	router.With(
		theAuth.AuthenticateUser,
		theAuth.RequireUser,
	).Get(`/api/assets/{assetID}`, myRouter.GetApiasset)
	router.With(
		gzippedhttp.GzipResponse,
		theAuth.AuthenticateUser,
		theAuth.RequireUser,
	).Delete(`/api/assets`, myRouter.DeleteApiassets)
	router.With(
		gzippedhttp.GzipResponse,
		theAuth.AuthenticateUser,
		theAuth.RequireUser,
	).Get(`/api/user/assets`, myRouter.GetApiuserassets)
	router.With(
		gzippedhttp.GzipResponse,
		theAuth.AuthenticateUser,
		theAuth.RequireUser,
	).Get(`/api/users`, myRouter.GetApiusers)
	router.With(
		gzippedhttp.GzipResponse,
		theAuth.AuthenticateUser,
		theAuth.RequireUser,
	).Get(`/api/assets`, myRouter.GetApiassets)
	router.With(
		gzippedhttp.GzipResponse,
		theAuth.AuthenticateUser,
		theAuth.RequireUser,
	).Get(`/api/stats`, myRouter.GetApistats)

	router.With(gzippedhttp.GzipResponse).Get(`/api/internal/stats`, myRouter.GetApiinternalstats)
	router.Get(`/ping`, myRouter.GetPing)
	router.Method(http.MethodGet, `/metrics`, promhttp.Handler())

	return router
}

// PostApiuserregister creates a new user and responds with the user id and
// an authorization token. An already registered email yields 409.
func (rtr *Router) PostApiuserregister(response http.ResponseWriter, request *http.Request) {
	var registerRequest models.RegisterUserRequest
	if !rtr.decodeAndValidate(response, request, &registerRequest) {
		return
	}

	usr, err := rtr.service.RegisterUser(request.Context(), &registerRequest)
	if errors.Is(err, service.ErrEmailTaken) {
		http.Error(response, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `rtr.service.RegisterUser()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	token, cookie, err := rtr.tokens.IssueToken(usr.ID)
	if err != nil {
		logger.Log.Debugln("Error calling the `rtr.tokens.IssueToken()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	http.SetCookie(response, cookie)

	rtr.writeJSON(response, http.StatusCreated, models.RegisterUserResponse{
		UserID: usr.ID,
		Token:  token,
	})
}

// PostApiuserlogin checks the credentials and responds with a fresh
// authorization token.
func (rtr *Router) PostApiuserlogin(response http.ResponseWriter, request *http.Request) {
	var loginRequest models.LoginRequest
	if !rtr.decodeAndValidate(response, request, &loginRequest) {
		return
	}

	usr, err := rtr.service.Login(request.Context(), loginRequest.Email, loginRequest.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `rtr.service.Login()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	token, cookie, err := rtr.tokens.IssueToken(usr.ID)
	if err != nil {
		logger.Log.Debugln("Error calling the `rtr.tokens.IssueToken()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	http.SetCookie(response, cookie)

	rtr.writeJSON(response, http.StatusOK, models.LoginResponse{Token: token})
}

// PostApiassets accepts a multipart upload with the photo in the "photo"
// field and stores it for the authenticated user.
func (rtr *Router) PostApiassets(response http.ResponseWriter, request *http.Request) {
	userID := getUserID(request)

	if err := request.ParseMultipartForm(maxUploadMemory); err != nil {
		metrics.IncrementAssetOperation("upload", "bad_request")
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := request.FormFile(uploadFieldName)
	if err != nil {
		metrics.IncrementAssetOperation("upload", "bad_request")
		http.Error(response, fmt.Sprintf("the `%s` form field is required", uploadFieldName), http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	asset, err := rtr.service.UploadAsset(
		request.Context(),
		userID,
		fileHeader.Filename,
		contentType,
		fileHeader.Size,
		file,
	)
	if errors.Is(err, service.ErrNoSuchUser) {
		// The authenticated user's row is gone, e.g. removed mid-session.
		metrics.IncrementAssetOperation("upload", "not_found")
		http.Error(response, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		metrics.IncrementAssetOperation("upload", "error")
		logger.Log.Debugln("Error calling the `rtr.service.UploadAsset()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	metrics.IncrementAssetOperation("upload", "ok")
	metrics.AssetUploadedBytes.Add(float64(fileHeader.Size))

	rtr.writeJSON(response, http.StatusCreated, models.UploadAssetResponse{
		AssetID:   asset.ID,
		BucketKey: asset.BucketKey,
	})
}

// GetApiasset streams the photo bytes back. By default the response asks
// the client to save the file under its original name; `?inline=1`
// switches to inline display. A missing asset yields 404 and a deleted
// one 410. An asset owned by another user also yields 404, so foreign
// asset ids are indistinguishable from absent ones.
func (rtr *Router) GetApiasset(response http.ResponseWriter, request *http.Request) {
	assetID, err := strconv.ParseInt(chi.URLParam(request, "assetID"), 10, 64)
	if err != nil {
		http.Error(response, "the asset id must be an integer", http.StatusBadRequest)
		return
	}

	asset, data, err := rtr.service.DownloadAsset(request.Context(), assetID)
	if errors.Is(err, service.ErrNoSuchAsset) {
		metrics.IncrementAssetOperation("download", "not_found")
		response.WriteHeader(http.StatusNotFound)
		return
	}
	if errors.Is(err, service.ErrAssetMarkedAsDeleted) {
		metrics.IncrementAssetOperation("download", "gone")
		response.WriteHeader(http.StatusGone)
		return
	}
	if err != nil {
		metrics.IncrementAssetOperation("download", "error")
		logger.Log.Debugln("Error calling the `rtr.service.DownloadAsset()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer data.Close()

	if asset.UserID != getUserID(request) {
		metrics.IncrementAssetOperation("download", "not_found")
		response.WriteHeader(http.StatusNotFound)
		return
	}

	metrics.IncrementAssetOperation("download", "ok")

	disposition := "attachment"
	if request.URL.Query().Get("inline") == "1" {
		disposition = "inline"
	}
	response.Header().Set("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, asset.AssetName))
	if asset.ContentType != "" {
		response.Header().Set("Content-Type", asset.ContentType)
	}
	if asset.Size > 0 {
		response.Header().Set("Content-Length", strconv.FormatInt(asset.Size, 10))
	}

	if _, err := io.Copy(response, data); err != nil {
		logger.Log.Debugln("Error streaming the asset body: ", zap.Error(err))
	}
}

// DeleteApiassets accepts a JSON array of asset ids and enqueues their
// deletion. The deletion itself happens asynchronously, so the handler
// responds with 202.
func (rtr *Router) DeleteApiassets(response http.ResponseWriter, request *http.Request) {
	var deleteRequest models.DeleteAssetsRequest
	if err := json.NewDecoder(request.Body).Decode(&deleteRequest); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	rtr.service.DeleteAssetsAsync(request.Context(), getUserID(request), deleteRequest)
	metrics.IncrementAssetOperation("delete", "accepted")

	response.WriteHeader(http.StatusAccepted)
}

// GetApiuserassets lists the authenticated user's photos.
func (rtr *Router) GetApiuserassets(response http.ResponseWriter, request *http.Request) {
	assets, err := rtr.service.GetUserAssets(request.Context(), getUserID(request))
	if err != nil {
		logger.Log.Debugln("Error calling the `rtr.service.GetUserAssets()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	rtr.writeJSON(response, http.StatusOK, assets)
}

// GetApiusers lists all registered users.
func (rtr *Router) GetApiusers(response http.ResponseWriter, request *http.Request) {
	users, err := rtr.service.GetUsers(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `rtr.service.GetUsers()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	rtr.writeJSON(response, http.StatusOK, users)
}

// GetApiassets lists all live photos of all users.
func (rtr *Router) GetApiassets(response http.ResponseWriter, request *http.Request) {
	assets, err := rtr.service.GetAssets(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `rtr.service.GetAssets()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	rtr.writeJSON(response, http.StatusOK, assets)
}

// GetApistats reports bucket and database statistics.
func (rtr *Router) GetApistats(response http.ResponseWriter, request *http.Request) {
	stats, err := rtr.service.GetStats(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `rtr.service.GetStats()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	rtr.writeJSON(response, http.StatusOK, stats)
}

// GetApiinternalstats reports the user and asset counts to callers from
// the trusted subnet. Without a configured subnet the endpoint is closed.
func (rtr *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	if rtr.ipChecker.IsTrustedSubnetEmpty() {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	clientIP, err := rtr.ipChecker.GetClientIP(request)
	if err != nil || !rtr.ipChecker.Check(clientIP) {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	stats, err := rtr.service.GetInternalStats(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `rtr.service.GetInternalStats()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	rtr.writeJSON(response, http.StatusOK, stats)
}

// GetPing checks the health of the metadata storage.
func (rtr *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := rtr.service.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `rtr.service.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

func (rtr *Router) decodeAndValidate(response http.ResponseWriter, request *http.Request, target interface{}) bool {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return false
	}

	if err := rtr.validate.Struct(target); err != nil {
		http.Error(response, err.Error(), http.StatusUnprocessableEntity)
		return false
	}

	return true
}

func (rtr *Router) writeJSON(response http.ResponseWriter, statusCode int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(statusCode)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error encoding the response body: ", zap.Error(err))
	}
}

func getUserID(request *http.Request) int64 {
	userID, _ := request.Context().Value(auth.UserIDKey).(int64)

	return userID
}
