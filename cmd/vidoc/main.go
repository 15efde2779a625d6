package main

import "github.com/forPelevin/vidoc/internal/cli"

func main() { cli.Main() }
