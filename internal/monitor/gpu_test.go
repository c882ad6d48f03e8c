package monitor

import "testing"

func TestParseGPUCSV(t *testing.T) {
	out := "0, NVIDIA RTX 6000 Ada Generation, 87, 42, 44032, 49140, 71, 284.50, 300.00\n" +
		"1, NVIDIA RTX 6000 Ada Generation, 0, 0, 12, 49140, 35, [N/A], 300.00\n"

	gpus := parseGPUCSV(out)
	if len(gpus) != 2 {
		t.Fatalf("parsed %d gpus, want 2", len(gpus))
	}

	first := gpus[0]
	if first.Index != 0 || first.Name != "NVIDIA RTX 6000 Ada Generation" {
		t.Fatalf("first gpu identity: %+v", first)
	}
	if first.UtilizationGPU != 87 || first.MemoryUsedMB != 44032 || first.PowerDrawW != 284.5 {
		t.Fatalf("first gpu metrics: %+v", first)
	}

	// unsupported fields degrade to zero
	if gpus[1].PowerDrawW != 0 {
		t.Fatalf("second gpu power=%v, want 0 for [N/A]", gpus[1].PowerDrawW)
	}
}

func TestParseGPUCSVEmptyAndMalformed(t *testing.T) {
	if got := parseGPUCSV(""); len(got) != 0 {
		t.Fatalf("parseGPUCSV(empty)=%v, want no gpus", got)
	}
	if got := parseGPUCSV("garbage line without commas\n"); len(got) != 0 {
		t.Fatalf("parseGPUCSV(garbage)=%v, want no gpus", got)
	}
}
