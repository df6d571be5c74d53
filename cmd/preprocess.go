package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spaghettifunk/dataverse/engine/assets/loaders"
	"github.com/spaghettifunk/dataverse/engine/budget"
	"github.com/spaghettifunk/dataverse/engine/core"
	"github.com/spaghettifunk/dataverse/engine/mesh"
	"github.com/spf13/cobra"
)

var (
	preprocessIn       string
	preprocessOut      string
	preprocessRatio    float64
	preprocessMaxFaces int
)

// preprocessCmd decimates an artifact ahead of deployment so the server
// never has to hold the full-resolution mesh at runtime. It deliberately
// exits 0 on failure: a build pipeline should fall back to runtime
// decimation, not break.
var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Decimate a mesh artifact on disk before deployment",
	Run:   runPreprocess,
}

func init() {
	preprocessCmd.Flags().StringVar(&preprocessIn, "in", "", "source OBJ artifact")
	preprocessCmd.Flags().StringVar(&preprocessOut, "out", "", "destination OBJ artifact")
	preprocessCmd.Flags().Float64Var(&preprocessRatio, "ratio", 0.95, "fraction of faces to remove")
	preprocessCmd.Flags().IntVar(&preprocessMaxFaces, "max-faces", 15000, "absolute face ceiling")
	preprocessCmd.MarkFlagRequired("in")
	preprocessCmd.MarkFlagRequired("out")
}

func runPreprocess(cmd *cobra.Command, args []string) {
	if err := preprocess(); err != nil {
		core.LogError("preprocessing failed: %v", err)
		fmt.Fprintln(os.Stderr, "falling back to runtime decimation")
		// Never fail the build.
		os.Exit(0)
	}
}

func preprocess() error {
	loader := &loaders.ObjLoader{}
	raw, err := loader.Load(preprocessIn)
	if err != nil {
		return err
	}
	if err := raw.Validate(); err != nil {
		return err
	}
	core.LogInfo("source mesh: %d faces, %d vertices", raw.FaceCount(), raw.VertexCount())

	decision := budget.ResolveTarget(raw.FaceCount(), budget.Budget{
		DecimationRatio: preprocessRatio,
		MaxFaces:        preprocessMaxFaces,
	})
	if decision.Skip {
		return fmt.Errorf("nothing to do: %s", decision.Reason)
	}

	decimated, err := mesh.Decimate(context.Background(), raw, decision.TargetFaces)
	if err != nil {
		return err
	}
	core.LogInfo("optimized mesh: %d faces (%.1f%% reduction)",
		decimated.AchievedFaces, decimated.RatioApplied*100)

	if err := loaders.WriteObj(preprocessOut, decimated.Vertices, decimated.Faces); err != nil {
		return err
	}
	core.LogInfo("saved optimized mesh to %s", preprocessOut)
	return nil
}
