package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"geojobs/internal/models"
	"geojobs/internal/schemas"
	"geojobs/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var getCmd = &cobra.Command{
	Use:   "get <raw_id>",
	Short: "Print one parsed job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Write parsed jobs from a JSON document or array",
	Long: "Validate parsed job documents against the schema and upsert them in order. " +
		"With --create-only an existing raw_id is an error. " +
		"A batch is not atomic: rows before a failing document stay written.",
	Args:  cobra.NoArgs,
	RunE:  runPut,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <raw_id>",
	Short: "Remove one parsed job",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var (
	putFile       string
	putCreateOnly bool
)

func init() {
	putCmd.Flags().StringVarP(&putFile, "file", "f", "", "Path to JSON file, - for stdin")
	putCmd.Flags().BoolVar(&putCreateOnly, "create-only", false, "Fail when the raw_id already exists")
	_ = putCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(getCmd, putCmd, deleteCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	rawID, err := parseRawID(args[0])
	if err != nil {
		return err
	}

	sess, err := openStore()
	if err != nil {
		return err
	}
	defer sess.Close()

	job, err := sess.repo.Get(cmd.Context(), rawID)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), job)
}

func runPut(cmd *cobra.Command, _ []string) error {
	data, err := readInput(putFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	jobs, err := decodeJobs(data)
	if err != nil {
		return err
	}

	sess, err := openStore()
	if err != nil {
		return err
	}
	defer sess.Close()

	written, err := writeJobs(cmd.Context(), sess.repo, jobs, putCreateOnly, sess.log)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d parsed job(s)\n", written)
	return nil
}

// writeJobs writes jobs in order and stops at the first failure. The error
// names the failing raw_id and how many rows were already written.
func writeJobs(ctx context.Context, repo storage.Repository, jobs []models.ParsedJob, createOnly bool, log *zap.Logger) (int, error) {
	for i := range jobs {
		job := &jobs[i]

		var err error
		if createOnly {
			err = repo.Insert(ctx, job)
		} else {
			err = repo.Upsert(ctx, job)
		}
		if err != nil {
			return i, fmt.Errorf("raw_id %d (%d of %d written before it): %w", job.RawID, i, len(jobs), err)
		}
		log.Debug("parsed job written", zap.Int64("raw_id", job.RawID))
	}
	return len(jobs), nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	rawID, err := parseRawID(args[0])
	if err != nil {
		return err
	}

	sess, err := openStore()
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.repo.Delete(cmd.Context(), rawID); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted raw_id %d\n", rawID)
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}

// decodeJobs accepts a single document or an array of documents. Every
// document is checked against the schema before any is decoded.
func decodeJobs(data []byte) ([]models.ParsedJob, error) {
	trimmed := bytes.TrimSpace(data)

	var docs []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("failed to parse JSON array: %w", err)
		}
	} else {
		docs = []json.RawMessage{trimmed}
	}

	jobs := make([]models.ParsedJob, 0, len(docs))
	for i, doc := range docs {
		if err := schemas.ValidateParsedJob(doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}

		var job models.ParsedJob
		if err := json.Unmarshal(doc, &job); err != nil {
			return nil, fmt.Errorf("document %d: failed to decode: %w", i, err)
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}
