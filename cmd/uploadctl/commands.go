// Copyright 2025 The fawa Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fawa-io/objupload/pkg/config"
	"github.com/fawa-io/objupload/pkg/fwlog"
	"github.com/fawa-io/objupload/pkg/ledger"
	"github.com/fawa-io/objupload/pkg/storage"
	"github.com/fawa-io/objupload/pkg/upload"
)

// offlineAnnotation marks commands that only derive keys and never talk to
// storage or the ledger.
const offlineAnnotation = "offline"

var errOffline = errors.New("storage is not available to offline commands")

// offlineClient stands in for the storage client of offline commands.
type offlineClient struct{}

func (offlineClient) Store(context.Context, string, string, io.Reader, int64, storage.StoreOptions) error {
	return errOffline
}

func (offlineClient) PublicURL(context.Context, string, string) (string, error) {
	return "", errOffline
}

func (offlineClient) Remove(context.Context, string, []string) error {
	return errOffline
}

// configLoader returns the configuration for the parsed flags.
type configLoader func(flags *pflag.FlagSet) (config.Config, error)

func watchedConfig(flags *pflag.FlagSet) (config.Config, error) {
	if err := config.InitConfig(flags); err != nil {
		return config.Config{}, err
	}
	return config.Get(), nil
}

type app struct {
	loadConfig configLoader
	tokenMode  string
	provider   *upload.Provider
	ledger     *ledger.Ledger
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(watchedConfig)
}

func newRootCmdWith(load configLoader) *cobra.Command {
	a := &app{loadConfig: load}
	root := &cobra.Command{
		Use:           "uploadctl",
		Short:         "Upload, locate and delete assets in object storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	config.RegisterFlags(root.PersistentFlags())
	root.PersistentFlags().StringVar(&a.tokenMode, "token", "monotonic", "Uniqueness token: monotonic, clock or content. "+
		"With content, assets with the same name, path and bytes share one object, so deleting one deletes it for all.")

	root.AddCommand(newUploadCmd(a), newDeleteCmd(a), newKeyCmd(a), newOrphansCmd(a))
	return root
}

func tokenSource(mode string) (upload.TokenSource, error) {
	switch mode {
	case "monotonic", "":
		return upload.NewMonotonicClock(time.Now), nil
	case "clock":
		return upload.ClockMillis(time.Now), nil
	case "content":
		return upload.ContentHash(upload.NewMonotonicClock(time.Now)), nil
	}
	return nil, fmt.Errorf("unknown token mode %q", mode)
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.loadConfig(cmd.Root().PersistentFlags())
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	logLevel, err := fwlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fwlog.Warnf("Invalid log level '%s': %v. Using default.", cfg.LogLevel, err)
	}
	fwlog.SetLevel(logLevel)

	tokens, err := tokenSource(a.tokenMode)
	if err != nil {
		return err
	}
	opts := []upload.Option{upload.WithTokenSource(tokens)}

	if cmd.Annotations[offlineAnnotation] == "true" {
		opts = append(opts, upload.WithClient(offlineClient{}))
	} else if cfg.Ledger.Addr != "" {
		l, err := ledger.NewDragonflyLedger(cmd.Context(), cfg.Ledger.Addr, cfg.Ledger.Password, cfg.Ledger.DB, cfg.Ledger.TTL)
		if err != nil {
			return err
		}
		a.ledger = l
		opts = append(opts, upload.WithLedger(l))
	}

	a.provider, err = upload.Init(cfg.Adapter(), opts...)
	return err
}

func newUploadCmd(a *app) *cobra.Command {
	var (
		subPath string
		mime    string
		stream  bool
	)
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a local file and print its key and URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := filepath.Base(args[0])
			f := &upload.File{
				Name: name,
				Ext:  filepath.Ext(name),
				Path: subPath,
				Mime: mime,
			}
			if f.Mime == "" {
				m, err := mimetype.DetectFile(args[0])
				if err != nil {
					return err
				}
				f.Mime = m.String()
			}

			var err error
			if stream {
				fh, openErr := os.Open(args[0])
				if openErr != nil {
					return openErr
				}
				defer fh.Close()
				st, statErr := fh.Stat()
				if statErr != nil {
					return statErr
				}
				f.Stream, f.Size = fh, st.Size()
				err = a.provider.UploadStream(cmd.Context(), f)
			} else {
				f.Buffer, err = os.ReadFile(args[0])
				if err != nil {
					return err
				}
				err = a.provider.Upload(cmd.Context(), f)
			}

			var urlErr *upload.URLResolutionError
			if errors.As(err, &urlErr) {
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s (hash %d) without a url\n", urlErr.Key, f.Hash)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:  %s\n", a.provider.Key(f))
			fmt.Fprintf(out, "hash: %d\n", f.Hash)
			fmt.Fprintf(out, "url:  %s\n", f.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&subPath, "path", "", "Sub-path below the configured directory.")
	cmd.Flags().StringVar(&mime, "mime", "", "Content type; detected from the content when empty.")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the file instead of reading it into memory.")
	return cmd
}

// fileFlags are the descriptor fields needed to address an uploaded object.
type fileFlags struct {
	name string
	ext  string
	path string
	hash uint64
}

func (ff *fileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ff.name, "name", "", "Original file name.")
	cmd.Flags().StringVar(&ff.ext, "ext", "", "Extension with leading dot; taken from --name when omitted.")
	cmd.Flags().StringVar(&ff.path, "path", "", "Sub-path used at upload time.")
	cmd.Flags().Uint64Var(&ff.hash, "hash", 0, "Hash printed by upload.")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("hash")
}

func (ff *fileFlags) file(cmd *cobra.Command) *upload.File {
	ext := ff.ext
	if !cmd.Flags().Changed("ext") {
		ext = filepath.Ext(ff.name)
	}
	return &upload.File{Name: ff.name, Ext: ext, Path: ff.path, Hash: ff.hash}
}

func newDeleteCmd(a *app) *cobra.Command {
	ff := &fileFlags{}
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an uploaded object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := ff.file(cmd)
			if err := a.provider.Delete(cmd.Context(), f, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", a.provider.Key(f))
			return nil
		},
	}
	ff.register(cmd)
	return cmd
}

func newKeyCmd(a *app) *cobra.Command {
	ff := &fileFlags{}
	cmd := &cobra.Command{
		Use:         "key",
		Short:       "Print the object key of an uploaded file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{offlineAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.provider.Key(ff.file(cmd)))
			return nil
		},
	}
	ff.register(cmd)
	return cmd
}

func newOrphansCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Inspect objects stored without a resolved URL",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded orphans of the configured bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.ledger == nil {
				return upload.ErrNoLedger
			}
			orphans, err := a.ledger.List(cmd.Context(), a.provider.Bucket())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tRECORDED\tREASON")
			for _, o := range orphans {
				fmt.Fprintf(w, "%s\t%s\t%s\n", o.Key, o.RecordedAt.Format(time.RFC3339), o.Reason)
			}
			return w.Flush()
		},
	}

	reap := &cobra.Command{
		Use:   "reap",
		Short: "Delete every recorded orphan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.provider.ReapOrphans(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "reaped %d orphan(s)\n", n)
			return err
		},
	}

	cmd.AddCommand(list, reap)
	return cmd
}
