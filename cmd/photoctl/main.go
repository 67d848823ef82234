// photoctl is an interactive console client for the photo service.
// It talks to the HTTP API and mirrors its operations as a numbered menu:
// statistics, user and asset listings, downloads, uploads and user creation.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/patric-chuzhbe/photoapp/internal/models"
)

const menu = `
>> Enter a command:
   0 => end
   1 => stats
   2 => users
   3 => assets
   4 => download
   5 => download and display
   6 => upload
   7 => add user
`

type client struct {
	api   *resty.Client
	input *bufio.Scanner
}

func main() {
	serverURL := flag.String("s", "http://localhost:8080", "base URL of the photo service")
	flag.Parse()

	theClient := &client{
		api:   resty.New().SetBaseURL(*serverURL),
		input: bufio.NewScanner(os.Stdin),
	}

	fmt.Println("** Welcome to PhotoApp **")

	if err := theClient.login(); err != nil {
		fmt.Println("Login failed:", err)
		fmt.Println("Continuing without authorization; use command 7 to add a user.")
	}

	for {
		fmt.Print(menu)

		command := theClient.prompt("")
		switch command {
		case "0":
			fmt.Println("** done **")
			return
		case "1":
			theClient.stats()
		case "2":
			theClient.users()
		case "3":
			theClient.assets()
		case "4":
			theClient.download(false)
		case "5":
			theClient.download(true)
		case "6":
			theClient.upload()
		case "7":
			theClient.addUser()
		default:
			fmt.Println("** Unknown command, try again...")
		}
	}
}

func (c *client) prompt(label string) string {
	if label != "" {
		fmt.Print(label)
	}
	if !c.input.Scan() {
		return "0"
	}

	return strings.TrimSpace(c.input.Text())
}

func (c *client) login() error {
	email := c.prompt("Enter email> ")
	password := c.prompt("Enter password> ")

	var loginResponse models.LoginResponse
	response, err := c.api.R().
		SetBody(models.LoginRequest{Email: email, Password: password}).
		SetResult(&loginResponse).
		Post("/api/user/login")
	if err != nil {
		return err
	}
	if response.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", response.StatusCode())
	}

	c.api.SetAuthToken(loginResponse.Token)
	fmt.Println("Logged in.")

	return nil
}

func (c *client) stats() {
	var stats models.StatsResponse
	response, err := c.api.R().SetResult(&stats).Get("/api/stats")
	if !checkResponse(response, err, http.StatusOK) {
		return
	}

	fmt.Println("bucket:", stats.BucketName)
	fmt.Println("bucket objects:", stats.BucketObjects)
	fmt.Println("# of users:", stats.Users)
	fmt.Println("# of assets:", stats.Assets)
}

func (c *client) users() {
	var users models.Users
	response, err := c.api.R().SetResult(&users).Get("/api/users")
	if !checkResponse(response, err, http.StatusOK) {
		return
	}

	fmt.Println("# of users:", len(users))
	for _, usr := range users {
		fmt.Println("User id:", usr.UserID)
		fmt.Println(" ", usr.Email)
		fmt.Println(" ", usr.LastName, ",", usr.FirstName)
		fmt.Println(" ", usr.BucketFolder)
	}
}

func (c *client) assets() {
	var assets models.Assets
	response, err := c.api.R().SetResult(&assets).Get("/api/assets")
	if !checkResponse(response, err, http.StatusOK) {
		return
	}

	fmt.Println("# of assets:", len(assets))
	for _, asset := range assets {
		fmt.Println("Asset id:", asset.ID)
		fmt.Println(" ", asset.UserID)
		fmt.Println(" ", asset.BucketKey)
	}
}

func (c *client) download(display bool) {
	assetID, err := strconv.ParseInt(c.prompt("Enter asset id> "), 10, 64)
	if err != nil {
		fmt.Println("The asset id must be an integer.")
		return
	}

	response, err := c.api.R().Get(fmt.Sprintf("/api/assets/%d", assetID))
	if err != nil {
		fmt.Println("Request failed:", err)
		return
	}
	switch response.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		fmt.Println("No such asset...")
		return
	case http.StatusGone:
		fmt.Println("The asset was deleted...")
		return
	default:
		reportUnexpectedStatus(response)
		return
	}

	fileName := fileNameFromResponse(response, fmt.Sprintf("asset-%d", assetID))
	if err := os.WriteFile(fileName, response.Body(), 0o644); err != nil {
		fmt.Println("Unable to save the file:", err)
		return
	}

	fmt.Println("Downloaded and saved as '" + fileName + "'")

	if display {
		openFile(fileName)
	}
}

func (c *client) upload() {
	localFileName := c.prompt("Enter local filename> ")
	if _, err := os.Stat(localFileName); err != nil {
		fmt.Println("Local file '" + localFileName + "' does not exist...")
		return
	}

	var uploadResponse models.UploadAssetResponse
	response, err := c.api.R().
		SetFile("photo", localFileName).
		SetResult(&uploadResponse).
		Post("/api/assets")
	if !checkResponse(response, err, http.StatusCreated) {
		return
	}

	fmt.Println("Uploaded, asset id =", uploadResponse.AssetID)
}

func (c *client) addUser() {
	registerRequest := models.RegisterUserRequest{
		Email:     c.prompt("Enter email> "),
		LastName:  c.prompt("Enter last name> "),
		FirstName: c.prompt("Enter first name> "),
		Password:  c.prompt("Enter password> "),
	}

	var registerResponse models.RegisterUserResponse
	response, err := c.api.R().
		SetBody(registerRequest).
		SetResult(&registerResponse).
		Post("/api/user/register")
	if !checkResponse(response, err, http.StatusCreated) {
		return
	}

	// The registration response carries a token, so the session switches
	// to the new user right away.
	c.api.SetAuthToken(registerResponse.Token)
	fmt.Println("Recorded user id =", registerResponse.UserID)
}

func checkResponse(response *resty.Response, err error, wantStatusCode int) bool {
	if err != nil {
		fmt.Println("Request failed:", err)
		return false
	}
	if response.StatusCode() != wantStatusCode {
		reportUnexpectedStatus(response)
		return false
	}

	return true
}

func reportUnexpectedStatus(response *resty.Response) {
	fmt.Println("Failed with status code:", response.StatusCode())
	if response.StatusCode() == http.StatusUnauthorized {
		fmt.Println("Not authorized; log in or add a user with command 7.")
		return
	}

	var message json.RawMessage
	if json.Unmarshal(response.Body(), &message) == nil {
		fmt.Println("Error message:", string(message))
	}
}

func fileNameFromResponse(response *resty.Response, fallback string) string {
	_, params, err := mime.ParseMediaType(response.Header().Get("Content-Disposition"))
	if err == nil && params["filename"] != "" {
		return params["filename"]
	}

	return fallback
}

// openFile shows the photo with the desktop's default viewer. Best effort,
// a missing viewer only prints a note.
func openFile(fileName string) {
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}

	if err := exec.Command(opener, fileName).Start(); err != nil {
		fmt.Println("Unable to display the file:", err)
	}
}
