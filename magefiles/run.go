//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Starts the mesh pipeline server.
func (Run) Server() error {
	fmt.Println("Run server...")
	if _, err := executeCmd("go", withArgs("run", "main.go", "serve"), withStream()); err != nil {
		return err
	}
	return nil
}

// Decimates the site mesh ahead of a deploy.
func (Run) Preprocess() error {
	mg.Deps(Build.Binary)
	if _, err := executeCmd("bin/dataverse",
		withArgs("preprocess", "--in", "assets/garching_cleaned.obj", "--out", "assets/garching_optimized.obj"),
		withStream()); err != nil {
		return err
	}
	return nil
}
