package router

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/photoapp/internal/assetsremover"
	"github.com/patric-chuzhbe/photoapp/internal/auth"
	"github.com/patric-chuzhbe/photoapp/internal/blobstore/filestore"
	"github.com/patric-chuzhbe/photoapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/photoapp/internal/ipchecker"
	"github.com/patric-chuzhbe/photoapp/internal/logger"
	"github.com/patric-chuzhbe/photoapp/internal/models"
	"github.com/patric-chuzhbe/photoapp/internal/service"
)

const testTrustedSubnet = "10.0.0.0/24"

var testSigningKey = []byte("some-router-test-signing-key")

func newTestServer(t *testing.T, trustedSubnet string) *httptest.Server {
	t.Helper()

	err := logger.Init("debug")
	require.NoError(t, err)

	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	theBlobs, err := filestore.New(t.TempDir() + "/blobs")
	require.NoError(t, err)

	theRemover := assetsremover.New(theStorage, theBlobs, nil, 10, 20*time.Millisecond)
	runCtx, stopRemover := context.WithCancel(context.Background())
	t.Cleanup(stopRemover)
	theRemover.Run(runCtx)

	theAuth := auth.New(theStorage, "photoapp_auth_test", testSigningKey, time.Hour)

	theIPChecker, err := ipchecker.New(trustedSubnet)
	require.NoError(t, err)

	srv := httptest.NewServer(New(
		service.New(theStorage, theBlobs, nil, theRemover),
		theAuth,
		theAuth,
		theIPChecker,
	))
	t.Cleanup(srv.Close)

	return srv
}

func registerTestUser(t *testing.T, srv *httptest.Server, email string) *models.RegisterUserResponse {
	t.Helper()

	var registerResponse models.RegisterUserResponse
	response, err := resty.New().R().
		SetBody(models.RegisterUserRequest{
			Email:     email,
			FirstName: "Some",
			LastName:  "User",
			Password:  "some password",
		}).
		SetResult(&registerResponse).
		Post(srv.URL + "/api/user/register")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, response.StatusCode())
	require.NotZero(t, registerResponse.UserID)
	require.NotEmpty(t, registerResponse.Token)

	return &registerResponse
}

func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)))
	require.NoError(t, err)

	return buf.Bytes()
}

func TestPostApiuserregister(t *testing.T) {
	srv := newTestServer(t, "")

	registerTestUser(t, srv, "some@example.com")

	t.Run("duplicate_email", func(t *testing.T) {
		response, err := resty.New().R().
			SetBody(models.RegisterUserRequest{
				Email:     "some@example.com",
				FirstName: "Another",
				LastName:  "User",
				Password:  "another password",
			}).
			Post(srv.URL + "/api/user/register")
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, response.StatusCode())
	})

	t.Run("missing_fields", func(t *testing.T) {
		response, err := resty.New().R().
			SetBody(map[string]string{"email": "incomplete@example.com"}).
			Post(srv.URL + "/api/user/register")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode())
	})

	t.Run("broken_json", func(t *testing.T) {
		response, err := resty.New().R().
			SetHeader("Content-Type", "application/json").
			SetBody(`{"email": `).
			Post(srv.URL + "/api/user/register")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, response.StatusCode())
	})
}

func TestPostApiuserlogin(t *testing.T) {
	srv := newTestServer(t, "")
	registerTestUser(t, srv, "some@example.com")

	t.Run("positive", func(t *testing.T) {
		var loginResponse models.LoginResponse
		response, err := resty.New().R().
			SetBody(models.LoginRequest{Email: "some@example.com", Password: "some password"}).
			SetResult(&loginResponse).
			Post(srv.URL + "/api/user/login")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, response.StatusCode())
		assert.NotEmpty(t, loginResponse.Token)
	})

	t.Run("wrong_password", func(t *testing.T) {
		response, err := resty.New().R().
			SetBody(models.LoginRequest{Email: "some@example.com", Password: "wrong password"}).
			Post(srv.URL + "/api/user/login")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, response.StatusCode())
	})
}

func TestAssetLifecycle(t *testing.T) {
	srv := newTestServer(t, "")
	registered := registerTestUser(t, srv, "some@example.com")
	client := resty.New().SetAuthToken(registered.Token)

	payload := encodeTestPNG(t, 2, 3)

	var uploadResponse models.UploadAssetResponse
	response, err := client.R().
		SetFileReader("photo", "cat.png", bytes.NewReader(payload)).
		SetResult(&uploadResponse).
		Post(srv.URL + "/api/assets")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, response.StatusCode())
	require.NotZero(t, uploadResponse.AssetID)
	assert.Contains(t, uploadResponse.BucketKey, ".png")

	assetURL := fmt.Sprintf("%s/api/assets/%d", srv.URL, uploadResponse.AssetID)

	t.Run("download_as_attachment", func(t *testing.T) {
		response, err := client.R().Get(assetURL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, response.StatusCode())
		assert.Equal(
			t,
			`attachment; filename="cat.png"`,
			response.Header().Get("Content-Disposition"),
		)
		assert.Equal(t, "image/png", response.Header().Get("Content-Type"))
		assert.Equal(t, payload, response.Body())
	})

	t.Run("download_inline", func(t *testing.T) {
		response, err := client.R().Get(assetURL + "?inline=1")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, response.StatusCode())
		assert.Equal(
			t,
			`inline; filename="cat.png"`,
			response.Header().Get("Content-Disposition"),
		)
	})

	t.Run("download_unknown_asset", func(t *testing.T) {
		response, err := client.R().Get(srv.URL + "/api/assets/100")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, response.StatusCode())
	})

	t.Run("list_user_assets", func(t *testing.T) {
		var assets models.Assets
		response, err := client.R().SetResult(&assets).Get(srv.URL + "/api/user/assets")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, response.StatusCode())
		require.Len(t, assets, 1)
		assert.Equal(t, uploadResponse.AssetID, assets[0].ID)
		assert.Equal(t, 2, assets[0].Width)
		assert.Equal(t, 3, assets[0].Height)
	})

	t.Run("list_all_assets", func(t *testing.T) {
		var assets models.Assets
		response, err := client.R().SetResult(&assets).Get(srv.URL + "/api/assets")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, response.StatusCode())
		assert.Len(t, assets, 1)
	})

	t.Run("delete_and_410", func(t *testing.T) {
		response, err := client.R().
			SetBody([]int64{uploadResponse.AssetID}).
			Delete(srv.URL + "/api/assets")
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, response.StatusCode())

		require.Eventually(t, func() bool {
			response, err := client.R().Get(assetURL)

			return err == nil && response.StatusCode() == http.StatusGone
		}, 2*time.Second, 20*time.Millisecond, "a deleted asset should answer 410")
	})
}

func TestAssetDownloadScopedToOwner(t *testing.T) {
	srv := newTestServer(t, "")
	owner := registerTestUser(t, srv, "owner@example.com")
	stranger := registerTestUser(t, srv, "stranger@example.com")

	payload := encodeTestPNG(t, 2, 2)
	var uploadResponse models.UploadAssetResponse
	response, err := resty.New().SetAuthToken(owner.Token).R().
		SetFileReader("photo", "secret.png", bytes.NewReader(payload)).
		SetResult(&uploadResponse).
		Post(srv.URL + "/api/assets")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, response.StatusCode())

	assetURL := fmt.Sprintf("%s/api/assets/%d", srv.URL, uploadResponse.AssetID)

	response, err = resty.New().SetAuthToken(stranger.Token).R().Get(assetURL)
	require.NoError(t, err)
	assert.Equal(
		t,
		http.StatusNotFound,
		response.StatusCode(),
		"another user's asset should look absent",
	)
	assert.NotEqual(t, payload, response.Body())

	response, err = resty.New().SetAuthToken(owner.Token).R().Get(assetURL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Equal(t, payload, response.Body())
}

func TestPostApiassetsForMissingUser(t *testing.T) {
	err := logger.Init("debug")
	require.NoError(t, err)

	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	theBlobs, err := filestore.New(t.TempDir() + "/blobs")
	require.NoError(t, err)

	myRouter := &Router{
		service: service.New(
			theStorage,
			theBlobs,
			nil,
			assetsremover.New(theStorage, theBlobs, nil, 1, time.Hour),
		),
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", "cat.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("some photo bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	// A token for a user id with no backing row, e.g. removed mid-session.
	request := httptest.NewRequest(http.MethodPost, "/api/assets", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request = request.WithContext(context.WithValue(request.Context(), auth.UserIDKey, int64(100)))
	recorder := httptest.NewRecorder()

	myRouter.PostApiassets(recorder, request)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestAuthorizationRequired(t *testing.T) {
	srv := newTestServer(t, "")

	for _, testCase := range []struct {
		method string
		url    string
	}{
		{http.MethodPost, "/api/assets"},
		{http.MethodGet, "/api/assets"},
		{http.MethodGet, "/api/assets/1"},
		{http.MethodDelete, "/api/assets"},
		{http.MethodGet, "/api/user/assets"},
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/stats"},
	} {
		request := resty.New().R()
		request.Method = testCase.method
		request.URL = srv.URL + testCase.url

		response, err := request.Send()
		require.NoError(t, err)
		assert.Equal(
			t,
			http.StatusUnauthorized,
			response.StatusCode(),
			"%s %s should require authorization",
			testCase.method,
			testCase.url,
		)
	}
}

func TestGetApiusers(t *testing.T) {
	srv := newTestServer(t, "")
	registerTestUser(t, srv, "first@example.com")
	registered := registerTestUser(t, srv, "second@example.com")

	var users models.Users
	response, err := resty.New().SetAuthToken(registered.Token).R().
		SetResult(&users).
		Get(srv.URL + "/api/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	require.Len(t, users, 2)
	assert.Equal(
		t,
		"second@example.com",
		users[0].Email,
		"users should be listed by descending id",
	)
}

func TestGetApistats(t *testing.T) {
	srv := newTestServer(t, "")
	registered := registerTestUser(t, srv, "some@example.com")
	client := resty.New().SetAuthToken(registered.Token)

	payload := encodeTestPNG(t, 1, 1)
	response, err := client.R().
		SetFileReader("photo", "cat.png", bytes.NewReader(payload)).
		Post(srv.URL + "/api/assets")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, response.StatusCode())

	var stats models.StatsResponse
	response, err = client.R().SetResult(&stats).Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.NotEmpty(t, stats.BucketName)
	assert.Equal(t, int64(1), stats.BucketObjects)
	assert.Equal(t, int64(1), stats.Users)
	assert.Equal(t, int64(1), stats.Assets)
}

func TestGetApiinternalstats(t *testing.T) {
	t.Run("no_trusted_subnet", func(t *testing.T) {
		srv := newTestServer(t, "")

		response, err := resty.New().R().Get(srv.URL + "/api/internal/stats")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, response.StatusCode())
	})

	t.Run("trusted_and_untrusted_ips", func(t *testing.T) {
		srv := newTestServer(t, testTrustedSubnet)
		registerTestUser(t, srv, "some@example.com")

		var stats models.InternalStatsResponse
		response, err := resty.New().R().
			SetHeader("X-Real-IP", "10.0.0.7").
			SetResult(&stats).
			Get(srv.URL + "/api/internal/stats")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, response.StatusCode())
		assert.Equal(t, int64(1), stats.Users)

		response, err = resty.New().R().
			SetHeader("X-Real-IP", "192.168.1.1").
			Get(srv.URL + "/api/internal/stats")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, response.StatusCode())
	})
}

func TestGetPing(t *testing.T) {
	srv := newTestServer(t, "")

	response, err := resty.New().R().Get(srv.URL + "/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	response, err := resty.New().R().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Contains(t, string(response.Body()), "go_goroutines")
}
