package main

import (
	"encoding/json"
	"fmt"

	// Packages
	version "github.com/mutablelogic/go-aitemplate/pkg/version"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type VersionCommand struct{}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *VersionCommand) Run(ctx *Globals) error {
	data, err := json.MarshalIndent(version.New(ctx.execName), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
