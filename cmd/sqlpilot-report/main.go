// Command sqlpilot-report aggregates session directories into a single JSON
// manifest. Input is either a local reports directory or an s3://bucket/prefix
// holding uploaded sessions; output is a manifest with per-session entries and
// corpus-level success statistics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sqlpilot/internal/config"
	"sqlpilot/internal/report"
	"sqlpilot/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileContent holds inlined session file content.
type FileContent struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// SessionEntry is one session in the manifest.
type SessionEntry struct {
	ID             string                 `json:"id"`
	Dir            string                 `json:"dir"`
	Question       string                 `json:"question"`
	FinalSQL       string                 `json:"final_sql"`
	Succeeded      bool                   `json:"succeeded"`
	Attempts       int                    `json:"attempts"`
	Reason         string                 `json:"reason,omitempty"`
	Category       string                 `json:"category,omitempty"`
	Error          string                 `json:"error,omitempty"`
	RowCount       int                    `json:"row_count"`
	ElapsedMs      int64                  `json:"elapsed_ms"`
	Timestamp      string                 `json:"timestamp"`
	UploadLocation string                 `json:"upload_location,omitempty"`
	Files          map[string]FileContent `json:"files"`
}

// Totals is the corpus-level rollup across all loaded sessions.
type Totals struct {
	Sessions            int            `json:"sessions"`
	Succeeded           int            `json:"succeeded"`
	FirstAttemptSuccess int            `json:"first_attempt_success"`
	CorrectedSuccess    int            `json:"corrected_success"`
	Failed              int            `json:"failed"`
	OverallSuccessRate  float64        `json:"overall_success_rate"`
	AvgAttempts         float64        `json:"avg_attempts"`
	FailureReasons      map[string]int `json:"failure_reasons"`
	FaultCategories     map[string]int `json:"fault_categories"`
}

// Manifest is the JSON payload written to the output directory.
type Manifest struct {
	GeneratedAt string         `json:"generated_at"`
	Source      string         `json:"source"`
	Totals      Totals         `json:"totals"`
	Sessions    []SessionEntry `json:"sessions"`
}

func main() {
	input := flag.String("input", ".sessions", "input directory or s3://bucket/prefix")
	output := flag.String("output", "reports", "output directory for report.json")
	configPath := flag.String("config", "config.yaml", "path to config file (for S3 access)")
	maxBytes := flag.Int("max-bytes", 64*1024, "max bytes to inline per session file")
	flag.Parse()

	ctx := context.Background()

	var sessions []SessionEntry
	var err error
	if strings.HasPrefix(*input, "s3://") {
		cfg, loadErr := config.Load(*configPath)
		if loadErr != nil {
			fail("load config: %v", loadErr)
		}
		bucket, prefix, parseErr := parseS3URI(*input)
		if parseErr != nil {
			fail("parse s3 input: %v", parseErr)
		}
		sessions, err = loadS3Sessions(ctx, cfg.Storage.S3, bucket, prefix, *maxBytes)
	} else {
		sessions, err = loadLocalSessions(*input, *maxBytes)
	}
	if err != nil {
		fail("load sessions: %v", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Timestamp > sessions[j].Timestamp
	})

	manifest := Manifest{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Source:      *input,
		Totals:      rollup(sessions),
		Sessions:    sessions,
	}
	if err := writeManifest(*output, manifest); err != nil {
		fail("write manifest: %v", err)
	}
	fmt.Printf("manifest with %d session(s) written to %s\n",
		len(sessions), filepath.Join(*output, "report.json"))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func rollup(sessions []SessionEntry) Totals {
	totals := Totals{
		FailureReasons:  map[string]int{},
		FaultCategories: map[string]int{},
	}
	attempts := 0
	for _, s := range sessions {
		totals.Sessions++
		attempts += s.Attempts
		if s.Succeeded {
			totals.Succeeded++
			if s.Attempts == 1 {
				totals.FirstAttemptSuccess++
			} else {
				totals.CorrectedSuccess++
			}
			continue
		}
		totals.Failed++
		if s.Reason != "" {
			totals.FailureReasons[s.Reason]++
		}
		if s.Category != "" {
			totals.FaultCategories[s.Category]++
		}
	}
	if totals.Sessions > 0 {
		totals.OverallSuccessRate = float64(totals.Succeeded) / float64(totals.Sessions)
		totals.AvgAttempts = float64(attempts) / float64(totals.Sessions)
	}
	return totals
}

func loadLocalSessions(root string, maxBytes int) ([]SessionEntry, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	sessions := make([]SessionEntry, 0, len(dirs))
	for _, dirEntry := range dirs {
		if !dirEntry.IsDir() {
			continue
		}
		dir := filepath.Join(root, dirEntry.Name())
		if _, err := os.Stat(filepath.Join(dir, "summary.json")); err != nil {
			continue
		}
		entry, err := readSessionFromDir(dir, maxBytes)
		if err != nil {
			continue
		}
		entry.Dir = dir
		if strings.TrimSpace(entry.ID) == "" {
			entry.ID = dirEntry.Name()
		}
		sessions = append(sessions, entry)
	}
	return sessions, nil
}

func readSessionFromDir(dir string, maxBytes int) (SessionEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		return SessionEntry{}, err
	}
	var summary report.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return SessionEntry{}, err
	}
	files := map[string]FileContent{}
	files["question.txt"] = mustReadFile(filepath.Join(dir, "question.txt"), maxBytes)
	files["final.sql"] = mustReadFile(filepath.Join(dir, "final.sql"), maxBytes)
	files["attempts.json"] = mustReadFile(filepath.Join(dir, "attempts.json"), maxBytes)
	if summary.ArchiveName != "" {
		if _, err := os.Stat(filepath.Join(dir, summary.ArchiveName)); err == nil {
			files[summary.ArchiveName] = FileContent{Name: summary.ArchiveName, Content: "(binary)", Truncated: true}
		}
	}
	return entryFromSummary(summary, filepath.Base(dir), files), nil
}

func entryFromSummary(summary report.Summary, fallbackID string, files map[string]FileContent) SessionEntry {
	id := strings.TrimSpace(summary.SessionID)
	if id == "" {
		id = fallbackID
	}
	return SessionEntry{
		ID:             id,
		Question:       summary.Question,
		FinalSQL:       summary.FinalSQL,
		Succeeded:      summary.Succeeded,
		Attempts:       summary.Attempts,
		Reason:         summary.Reason,
		Category:       summary.Category,
		Error:          summary.Error,
		RowCount:       summary.RowCount,
		ElapsedMs:      summary.ElapsedMs,
		Timestamp:      summary.Timestamp,
		UploadLocation: summary.UploadLocation,
		Files:          files,
	}
}

func mustReadFile(path string, maxBytes int) FileContent {
	content, truncated, err := readFileLimited(path, maxBytes)
	if err != nil {
		return FileContent{Name: filepath.Base(path)}
	}
	return FileContent{Name: filepath.Base(path), Content: content, Truncated: truncated}
}

func readFileLimited(path string, maxBytes int) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer util.CloseWithErr(f, "report input")
	limit := int64(maxBytes) + 1
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return "", false, err
	}
	truncated := len(data) > maxBytes
	if truncated {
		data = data[:maxBytes]
	}
	return string(data), truncated, nil
}

func writeManifest(output string, manifest Manifest) error {
	if err := os.MkdirAll(output, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(output, "report.json"))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "report output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(manifest)
}

func parseS3URI(input string) (bucket string, prefix string, err error) {
	trimmed := strings.TrimPrefix(input, "s3://")
	if trimmed == "" {
		return "", "", fmt.Errorf("missing s3 bucket")
	}
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = strings.TrimPrefix(parts[1], "/")
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
	}
	return bucket, prefix, nil
}

func loadS3Sessions(ctx context.Context, cfg config.S3Config, bucket, prefix string, maxBytes int) ([]SessionEntry, error) {
	client, err := s3ClientFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	keys, err := listSummaryKeys(ctx, client, bucket, prefix)
	if err != nil {
		return nil, err
	}
	sessions := make([]SessionEntry, 0, len(keys))
	for _, key := range keys {
		dir := strings.TrimSuffix(key, "/summary.json")
		entry, err := readSessionFromS3(ctx, client, bucket, dir, maxBytes)
		if err != nil {
			util.Warnf("skipping %s: %v", dir, err)
			continue
		}
		entry.Dir = "s3://" + bucket + "/" + dir
		if strings.TrimSpace(entry.ID) == "" {
			entry.ID = filepath.Base(dir)
		}
		sessions = append(sessions, entry)
	}
	return sessions, nil
}

func listSummaryKeys(ctx context.Context, client *s3.Client, bucket, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/summary.json") {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func readSessionFromS3(ctx context.Context, client *s3.Client, bucket, dir string, maxBytes int) (SessionEntry, error) {
	summaryData, _, err := readObjectLimited(ctx, client, bucket, dir+"/summary.json", maxBytes)
	if err != nil {
		return SessionEntry{}, err
	}
	var summary report.Summary
	if err := json.Unmarshal([]byte(summaryData), &summary); err != nil {
		return SessionEntry{}, err
	}
	files := map[string]FileContent{}
	files["question.txt"] = readObjectFile(ctx, client, bucket, dir+"/question.txt", maxBytes)
	files["final.sql"] = readObjectFile(ctx, client, bucket, dir+"/final.sql", maxBytes)
	files["attempts.json"] = readObjectFile(ctx, client, bucket, dir+"/attempts.json", maxBytes)
	return entryFromSummary(summary, filepath.Base(dir), files), nil
}

func readObjectFile(ctx context.Context, client *s3.Client, bucket, key string, maxBytes int) FileContent {
	content, truncated, err := readObjectLimited(ctx, client, bucket, key, maxBytes)
	if err != nil {
		return FileContent{Name: filepath.Base(key)}
	}
	return FileContent{Name: filepath.Base(key), Content: content, Truncated: truncated}
}

func readObjectLimited(ctx context.Context, client *s3.Client, bucket, key string, maxBytes int) (string, bool, error) {
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", false, err
	}
	defer util.CloseWithErr(resp.Body, "s3 response body")
	limit := int64(maxBytes) + 1
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", false, err
	}
	truncated := len(data) > maxBytes
	if truncated {
		data = data[:maxBytes]
	}
	return string(data), truncated, nil
}

func s3ClientFromConfig(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		//nolint:staticcheck // AWS SDK v2 global endpoint resolver is deprecated, but required for custom S3 endpoints.
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, _ string, _ ...any) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				//nolint:staticcheck // AWS SDK v2 global endpoint resolver is deprecated, but required for custom S3 endpoints.
				return aws.Endpoint{URL: cfg.Endpoint, HostnameImmutable: true}, nil
			}
			//nolint:staticcheck // AWS SDK v2 global endpoint resolver is deprecated, but required for custom S3 endpoints.
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		//nolint:staticcheck // AWS SDK v2 global endpoint resolver is deprecated, but required for custom S3 endpoints.
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" || cfg.SessionToken != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return client, nil
}
