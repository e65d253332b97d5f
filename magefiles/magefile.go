//go:build mage

package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "bin/engine"

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println(">> go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Build compiles the engine to ./bin/engine.
func Build() error {
	mg.Deps(Tidy)
	fmt.Println(">> Building engine binary...")
	return sh.Run("go", "build", "-o", binary, "./cmd/engine")
}

// Test runs all unit tests. The QWI tests use a fake browser, so Chrome is
// not needed.
func Test() error {
	fmt.Println(">> Running tests...")
	return sh.RunV("go", "test", "./...")
}

// Lint runs go vet, then golangci-lint if available.
func Lint() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		fmt.Println(">> golangci-lint not found; skipping.")
		return nil
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Run builds then starts the local HTTP API.
func Run() error {
	mg.Deps(Build)
	fmt.Println(">> Starting engine serve ...")
	return sh.RunV("./"+binary, "serve")
}

// All builds then runs every pipeline once.
func All() error {
	mg.Deps(Build)
	return sh.RunV("./"+binary, "all")
}

// Clean removes build artifacts.
func Clean() error {
	fmt.Println(">> Cleaning...")
	return os.RemoveAll("bin")
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[mage] .env not loaded: %v", err)
	}
}
