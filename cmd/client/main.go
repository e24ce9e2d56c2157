package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	baseURL string
	client  *Client
)

// UploadResponse mirrors the server's upload reply
type UploadResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	ExpiresAt string `json:"expires_at"`
}

// Client talks to a vanish server
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the given server
func NewClient(baseURL string) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Upload sends a local file to the server and returns the share info
func (c *Client) Upload(filePath string) (*UploadResponse, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"upload", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var upload UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &upload, nil
}

// Download fetches a share by id into the given path. An empty output
// path derives the name from the Content-Disposition header.
func (c *Client) Download(id, outputPath string) (string, error) {
	resp, err := c.HTTPClient.Get(c.BaseURL + "download/" + id)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("no share with id %q", id)
	case http.StatusGone:
		return "", fmt.Errorf("share %q has expired", id)
	default:
		return "", fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if outputPath == "" {
		outputPath = filenameFromDisposition(resp.Header.Get("Content-Disposition"))
		if outputPath == "" {
			outputPath = id
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	return outputPath, nil
}

func filenameFromDisposition(disposition string) string {
	const marker = `filename="`
	start := strings.Index(disposition, marker)
	if start < 0 {
		return ""
	}
	rest := disposition[start+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return filepath.Base(rest[:end])
}

var rootCmd = &cobra.Command{
	Use:   "vanish",
	Short: "Vanish client - share files that disappear",
	Long: `Vanish client is a command-line tool for sharing files through a
vanish server. Uploaded files expire automatically after the server's
retention window.

Quick start:
  vanish upload file.txt                      # Upload a file, print its link
  vanish get abc123def456                     # Download a share by id
  vanish config set server https://vanish.example.com/`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		baseURL = viper.GetString("server")
		if baseURL == "" {
			baseURL = "http://localhost:8080/"
		}
		client = NewClient(baseURL)
	},
}

var uploadCmd = &cobra.Command{
	Use:     "upload <file>",
	Aliases: []string{"u", "up"},
	Short:   "Upload a file to the server",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := client.Upload(args[0])
		if err != nil {
			return fmt.Errorf("error uploading file: %w", err)
		}

		fmt.Printf("Upload successful!\n")
		fmt.Printf("URL: %s\n", resp.URL)
		fmt.Printf("ID: %s\n", resp.ID)
		fmt.Printf("Size: %d bytes\n", resp.Size)
		fmt.Printf("Expires: %s\n", resp.ExpiresAt)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:     "get <id>",
	Aliases: []string{"g", "download"},
	Short:   "Download a share by id",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		path, err := client.Download(args[0], output)
		if err != nil {
			return err
		}

		fmt.Printf("Saved to %s\n", path)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"c", "cfg"},
	Short:   "Manage client configuration",
	Long: `Manage client configuration settings like the server URL.

Configuration is stored in ~/.vanish/config.yaml`,
}

var configSetCmd = &cobra.Command{
	Use:  "set <key> <value>",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		viper.Set(args[0], args[1])
		if err := viper.WriteConfig(); err != nil {
			return fmt.Errorf("error saving configuration: %w", err)
		}

		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:  "get <key>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := viper.GetString(args[0])
		if value == "" {
			fmt.Printf("%s is not set\n", args[0])
		} else {
			fmt.Printf("%s = %s\n", args[0], value)
		}
		return nil
	},
}

func init() {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".vanish")
	os.MkdirAll(configDir, 0o755)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")
	viper.ReadInConfig() // Ignore errors if config file doesn't exist

	rootCmd.PersistentFlags().StringP("server", "s", "", "Server URL (default: http://localhost:8080/)")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	getCmd.Flags().StringP("output", "o", "", "Output path (default: original filename)")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
