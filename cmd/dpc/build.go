package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CarbonSmasher/dpc/internal/codegen"
	"github.com/CarbonSmasher/dpc/internal/driver"
	"github.com/CarbonSmasher/dpc/internal/project"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] <file.dpc>",
	Short: "Compile an IR file into datapack functions",
	Long:  "Compile a text-IR file into .mcfunction files under the project output directory.",
	Args:  cobra.ExactArgs(1),
	RunE:  buildExecution,
}

func init() {
	buildCmd.Flags().Bool("no-cache", false, "bypass the compile cache")
	buildCmd.Flags().String("out", "", "override the output directory")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	projectPath, err := cmd.Flags().GetString("project")
	if err != nil {
		return err
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	outOverride, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	proj := project.Default()
	if loaded, err := project.Load(projectPath); err == nil {
		proj = loaded
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if outOverride != "" {
		proj.Out = outOverride
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	settings := driver.FromProject(proj)
	key := driver.Key(string(src), settings)

	var cache *driver.DiskCache
	if !noCache {
		// A missing cache never fails the build.
		cache, _ = driver.OpenDiskCache("dpc")
	}
	if cache != nil {
		if payload, ok, err := cache.Get(key); err == nil && ok {
			if !quiet {
				color.Green("cached: %s", args[0])
			}
			return writeFunctions(proj.Out, payload.Functions)
		}
	}

	pack, err := driver.CompileText(string(src), settings)
	if err != nil {
		color.Red("error: %v", err)
		return err
	}

	functions := map[string][]string{}
	for id, fn := range pack.Functions {
		functions[id] = fn.Contents
	}
	if cache != nil {
		if err := cache.Put(key, &driver.CachePayload{Functions: functions, Tags: pack.Tags}); err != nil && !quiet {
			color.Yellow("cache write failed: %v", err)
		}
	}

	if err := writeFunctions(proj.Out, functions); err != nil {
		return err
	}
	if !quiet {
		color.Green("compiled %d functions from %s", len(functions), args[0])
	}
	return nil
}

// writeFunctions emits one file per function. Content is fully
// determined before the fan-out, so concurrent writes cannot change
// the output bytes.
func writeFunctions(outDir string, functions map[string][]string) error {
	ids := make([]string, 0, len(functions))
	for id := range functions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			path := filepath.Join(outDir, codegen.FunctionPath(id))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			var content []byte
			for _, line := range functions[id] {
				content = append(content, line...)
				content = append(content, '\n')
			}
			if err := os.WriteFile(path, content, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}
