package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/conda/conda-recipe-manager/internal/bump"
	"github.com/conda/conda-recipe-manager/internal/config"
	"github.com/conda/conda-recipe-manager/internal/crmerrors"
	"github.com/conda/conda-recipe-manager/internal/fetch"
)

// defaultRetryInterval mirrors DEFAULT_RETRY_INTERVAL from
// original_source/conda_recipe_manager/fetcher/artifact_fetcher.py
// (the CLI flag's default; CRM_FETCH_RETRY_INTERVAL only affects
// callers that don't pass --retry-interval explicitly, which the flag
// always does, so it's the retry *count* below that config governs).
const defaultRetryInterval = 10.0

var (
	bumpBuildNum            bool
	bumpOverrideBuildNum    int
	bumpOverrideBuildNumSet bool
	bumpDryRun              bool
	bumpTargetVersion       string
	bumpRetryInterval       float64
	bumpSaveOnFailure       bool
	bumpOmitTrailingNewline bool
)

var bumpRecipeCmd = &cobra.Command{
	Use:   "bump-recipe RECIPE",
	Short: "Bump a recipe's build number, version, and source artifact hashes",
	Long: `bump-recipe edits a recipe file in place: incrementing (or resetting)
/build/number, and — when a target version is given — updating
/package/version along with the source artifacts' URLs and hashes.`,
	Args: cobra.ExactArgs(1),
	RunE: runBumpRecipe,
}

func init() {
	flags := bumpRecipeCmd.Flags()
	flags.IntVarP(&bumpOverrideBuildNum, "override-build-num", "o", 0, "Reset the build number to a custom value")
	flags.BoolVarP(&bumpBuildNum, "build-num", "b", false, "Bump the build number by 1")
	flags.BoolVarP(&bumpDryRun, "dry-run", "d", false, "Print the recipe to stdout instead of saving it")
	flags.StringVarP(&bumpTargetVersion, "target-version", "t", "", "New project version to target")
	flags.Float64VarP(&bumpRetryInterval, "retry-interval", "i", defaultRetryInterval,
		"Retry interval (in seconds) for network requests, scales with failed attempts")
	flags.BoolVarP(&bumpSaveOnFailure, "save-on-failure", "s", false, "Save partial progress if a step fails")
	flags.BoolVar(&bumpOmitTrailingNewline, "omit-trailing-newline", false, "Omit the recipe file's trailing newline")
}

func runBumpRecipe(cmd *cobra.Command, args []string) error {
	bumpOverrideBuildNumSet = cmd.Flags().Changed("override-build-num")
	recipePath := args[0]

	if err := validateInteropFlags(bumpBuildNum, bumpOverrideBuildNumSet, bumpTargetVersion); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitWithCode(ExitClickUsage)
		return nil
	}
	if bumpRetryInterval <= 0 {
		fmt.Fprintln(os.Stderr, "the retry interval must be a positive, non-zero value")
		exitWithCode(ExitClickUsage)
		return nil
	}

	vb, err := bump.New(recipePath, bump.Options{
		DryRun:              bumpDryRun,
		CommitOnFailure:     bumpSaveOnFailure,
		OmitTrailingNewline: bumpOmitTrailingNewline,
	})
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "couldn't read the given recipe file:", err)
			exitWithCode(ExitIO)
			return nil
		}
		fmt.Fprintln(os.Stderr, "an error occurred while parsing the recipe file contents:", err)
		exitWithCode(ExitParse)
		return nil
	}

	buildNumInt := 0
	if bumpOverrideBuildNumSet {
		buildNumInt = bumpOverrideBuildNum
	}
	var buildNumErr error
	if bumpBuildNum {
		buildNumErr = vb.UpdateBuildNum(nil)
	} else {
		buildNumErr = vb.UpdateBuildNum(&buildNumInt)
	}
	if buildNumErr != nil {
		var invalidState *crmerrors.VersionBumperInvalidState
		var patchErr *crmerrors.VersionBumperPatchError
		switch {
		case errors.As(buildNumErr, &invalidState):
			fmt.Fprintln(os.Stderr, "failed to bump /build/number because the recipe was in or going to be in an invalid state:", buildNumErr)
			exitWithCode(ExitIllegalOperation)
		case errors.As(buildNumErr, &patchErr):
			fmt.Fprintln(os.Stderr, "failed to edit /build/number:", buildNumErr)
			exitWithCode(ExitPatch)
		default:
			fmt.Fprintln(os.Stderr, buildNumErr)
			exitWithCode(ExitPatch)
		}
		return nil
	}

	if bumpTargetVersion != "" {
		if code, ok := fullVersionBump(cmd.Context(), vb, bumpTargetVersion, bumpRetryInterval); !ok {
			exitWithCode(code)
			return nil
		}
	}

	if err := vb.CommitChanges(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to save the recipe file:", err)
		exitWithCode(ExitIO)
		return nil
	}
	exitWithCode(ExitSuccess)
	return nil
}

// validateInteropFlags mirrors _validate_interop_flags from
// original_source/conda_recipe_manager/commands/bump_recipe.py.
func validateInteropFlags(buildNum bool, overrideBuildNumSet bool, targetVersion string) error {
	if overrideBuildNumSet && targetVersion == "" {
		return fmt.Errorf("--target-version must be provided when using --override-build-num")
	}
	if !buildNum && targetVersion == "" {
		return fmt.Errorf("--target-version must be provided if --build-num is not provided")
	}
	if buildNum && overrideBuildNumSet {
		return fmt.Errorf("--build-num and --override-build-num cannot be used together")
	}
	if buildNum && targetVersion != "" {
		return fmt.Errorf("--build-num and --target-version cannot be used together")
	}
	return nil
}

// fullVersionBump mirrors _full_version_bump: the version must be
// updated before source artifacts are fetched, so that the correct
// artifact is hashed.
func fullVersionBump(ctx context.Context, vb *bump.VersionBumper, targetVersion string, retryInterval float64) (int, bool) {
	if err := vb.UpdateVersion(targetVersion); err != nil {
		var invalidState *crmerrors.VersionBumperInvalidState
		if errors.As(err, &invalidState) {
			fmt.Fprintln(os.Stderr, "the provided target version is the same value found in the recipe file, or empty:", err)
			return ExitClickUsage, false
		}
		fmt.Fprintln(os.Stderr, "failed to edit the target version:", err)
		return ExitPatch, false
	}

	fetchers, err := fetch.FromRecipe(vb.GetRecipeReader().Reader, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to inspect the recipe's source artifacts:", err)
		return ExitPatch, false
	}

	results, err := fetch.FetchAllCorrectedArtifactsWithRetry(ctx, fetchers, time.Duration(retryInterval*float64(time.Second)), config.GetFetchRetries())
	defer fetch.CloseAll(results)
	if err != nil {
		var fetchErr *crmerrors.FetchError
		if errors.As(err, &fetchErr) {
			fmt.Fprintln(os.Stderr, "failed to fetch the source artifacts found in the recipe file:", err)
			return ExitHTTP, false
		}
		fmt.Fprintln(os.Stderr, err)
		return ExitHTTP, false
	}

	if err := vb.UpdateHTTPURLs(results); err != nil {
		fmt.Fprintln(os.Stderr, "failed to update the recipe file's source URLs:", err)
		return ExitPatch, false
	}
	if err := vb.UpdateSHA256(results); err != nil {
		fmt.Fprintln(os.Stderr, "failed to update the recipe file's source hashes:", err)
		return ExitPatch, false
	}
	return ExitSuccess, true
}
