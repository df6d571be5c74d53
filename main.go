/*
Dataverse is the mesh acquisition and decimation service behind the
industrial asset dashboard's 3D views.
*/
package main

import (
	"os"

	"github.com/spaghettifunk/dataverse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
