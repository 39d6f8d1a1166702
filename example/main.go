// FILE: lixenwraith/params/example/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/lixenwraith/params"
)

const (
	paramFilePath  = "render.toml"
	binaryFilePath = "render.params"
)

func main() {
	// =========================================================================
	// PART 1: DECLARATIONS
	// Declare an enum and two object types, then write a default file to disk.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 1: Declaring parameter types...")

	defer func() {
		log.Println("---")
		log.Println("🧹 Cleaning up...")
		os.Remove(paramFilePath)
		os.Remove(binaryFilePath)
		os.Unsetenv("RENDER_SAMPLES")
		log.Printf("Removed %s, %s and unset RENDER_SAMPLES.", paramFilePath, binaryFilePath)
	}()

	reg := params.NewRegistry()
	quality := must(reg.Enum("Quality",
		params.Variant{Name: "DRAFT", Value: 0},
		params.Variant{Name: "FINAL", Value: 1},
	))
	camera := must(reg.Object("Camera").
		Field("fov", "float", 60.0).
		Field("position", "tuple[float, float, float]", params.Tuple{0.0, 0.0, 10.0}).
		Build())
	render := must(reg.Object("Render").
		Field("output", "path", params.Path("out.png")).
		Doc("Where the rendered image is written").
		Field("quality", "Quality", quality.MustVariant("DRAFT")).
		Field("samples", "int", int64(16)).
		Field("seed", "int | none", nil).
		Field("camera", "Camera", camera).
		Build())

	if err := render.New().Save(paramFilePath); err != nil {
		log.Fatalf("❌ Failed to write initial file: %v", err)
	}
	log.Printf("✅ Default parameters saved to %s.", paramFilePath)

	// =========================================================================
	// PART 2: LAYERED LOADING WITH THE BUILDER
	// Env overrides the file; a validator guards every published snapshot.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 2: Building the store...")

	os.Setenv("RENDER_SAMPLES", "64")
	log.Println("   (Set environment variable RENDER_SAMPLES=64)")

	store, err := params.NewBuilder(render).
		WithFile(paramFilePath).
		WithEnvPrefix("RENDER_").
		WithArgs([]string{"--quality", "final", "--camera.position", "[1, 2, 3]"}).
		WithValidator(func(snap *params.Object) error {
			samples, err := snap.Int64("samples")
			if err != nil {
				return err
			}
			if samples < 1 || samples > 4096 {
				return fmt.Errorf("samples %d outside 1-4096", samples)
			}
			return nil
		}).
		Build()
	if err != nil {
		log.Fatalf("❌ Builder failed: %v", err)
	}
	printSnapshot(store.Snapshot(), "Initial State (CLI > Env > File)")

	// =========================================================================
	// PART 3: OVERRIDES ON FROZEN SNAPSHOTS
	// Snapshots never change; updates publish a new one.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 3: Overriding a frozen snapshot...")

	before := store.Snapshot()
	if err := store.Update(map[string]any{"samples": "lots"}, params.ModeFromText); err != nil {
		log.Printf("✅ Rejected bad override as expected: %v", err)
	}
	if err := store.Update(map[string]any{"seed": "42", "camera.fov": "75"}, params.ModeFromText); err != nil {
		log.Fatalf("❌ Override failed: %v", err)
	}
	oldFov, _ := before.Get("camera.fov")
	newFov, _ := store.Get("camera.fov")
	log.Printf("   Old snapshot fov=%v, new snapshot fov=%v", oldFov, newFov)
	log.Printf("   Differences from defaults: %v", store.Snapshot().DiffFromDefaults())

	// =========================================================================
	// PART 4: BINARY ROUND TRIP
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 4: Binary round trip...")

	if err := store.Snapshot().SaveBinary(binaryFilePath); err != nil {
		log.Fatalf("❌ SaveBinary failed: %v", err)
	}
	restored, err := render.LoadBinary(binaryFilePath)
	if err != nil {
		log.Fatalf("❌ LoadBinary failed: %v", err)
	}
	if !restored.Equal(store.Snapshot()) {
		log.Fatalf("❌ VERIFICATION FAILED: restored object differs from the snapshot.")
	}
	log.Println("✅ Restored object equals the published snapshot.")

	// =========================================================================
	// PART 5: DYNAMIC RELOADING WITH THE WATCHER
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 5: Testing the file watcher...")

	store.AutoUpdateWithOptions(params.WatchOptions{
		PollInterval: 250 * time.Millisecond,
		Debounce:     100 * time.Millisecond,
	})
	defer store.StopAutoUpdate()
	changes := store.Watch()

	var wg sync.WaitGroup
	wg.Add(1)
	go modifyFileOnDisk(&wg, render)
	log.Println("   (Modifier goroutine dispatched to change file in 1 second...)")

	select {
	case path := <-changes:
		log.Printf("✅ Watcher detected a change for path: '%s'", path)
		printSnapshot(store.Snapshot(), "Final State (Updated by Watcher)")
	case <-time.After(5 * time.Second):
		log.Fatalf("❌ TEST FAILED: Timed out waiting for watcher notification.")
	}

	wg.Wait()
}

// modifyFileOnDisk simulates an external program editing the parameter file
func modifyFileOnDisk(wg *sync.WaitGroup, render *params.ObjectType) {
	defer wg.Done()
	time.Sleep(1 * time.Second)
	log.Println("   (Modifier goroutine: now changing file on disk...)")

	edited, err := render.NewWith(map[string]any{
		"output":     "final.png",
		"camera.fov": 90.0,
	}, params.ModeRelaxed)
	if err != nil {
		log.Fatalf("❌ Modifier failed to build parameters: %v", err)
	}
	if err := edited.Save(paramFilePath); err != nil {
		log.Fatalf("❌ Modifier failed to save file: %v", err)
	}
	log.Println("   (Modifier goroutine: finished.)")
}

// printSnapshot displays the fields of a snapshot
func printSnapshot(snap *params.Object, title string) {
	output, _ := snap.Path("output")
	quality, _ := snap.Enum("quality")
	samples, _ := snap.Int64("samples")
	seed, _ := snap.Get("seed")
	fov, _ := snap.Get("camera.fov")
	position, _ := snap.Get("camera.position")

	fmt.Println("   --------------------------------------------------")
	fmt.Printf("             %s\n", title)
	fmt.Println("   --------------------------------------------------")
	fmt.Printf("     Output:    %s\n", output)
	fmt.Printf("     Quality:   %s\n", quality.Name())
	fmt.Printf("     Samples:   %d\n", samples)
	fmt.Printf("     Seed:      %v\n", seed)
	fmt.Printf("     Fov:       %v\n", fov)
	fmt.Printf("     Position:  %v\n", position)
	fmt.Println("   --------------------------------------------------")
}

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatalf("❌ Declaration failed: %v", err)
	}
	return v
}
