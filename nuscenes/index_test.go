package nuscenes

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var (
	tokScene2 = tk(0x20)
	tokS3     = tk(0x21)
)

// withSecondScene adds an earlier one-sample scene whose sample carries no
// annotations or payloads.
func withSecondScene(f *fixture) *fixture {
	f.scenes = append(f.scenes, Scene{
		Token: tokScene2, Name: "scene-0002", LogToken: tokLog,
		NbrSamples: 1, FirstSampleToken: tokS3, LastSampleToken: tokS3,
	})
	f.samples = append(f.samples, Sample{
		Token: tokS3, SceneToken: tokScene2, Timestamp: ts(500_000),
	})
	return f
}

func TestChainMaterialization(t *testing.T) {
	d := loadFixture(t, newFixture())

	sc, ok := d.Scene(tokScene)
	if !ok {
		t.Fatal("Scene(tokScene) not found")
	}
	if diff := cmp.Diff([]Token{tokS1, tokS2}, sc.SampleTokens); diff != "" {
		t.Errorf("scene chain mismatch (-want +got):\n%s", diff)
	}

	inst, ok := d.Instance(tokInst)
	if !ok {
		t.Fatal("Instance(tokInst) not found")
	}
	if diff := cmp.Diff([]Token{tokA1, tokA2}, inst.AnnotationTokens); diff != "" {
		t.Errorf("instance chain mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleGrouping(t *testing.T) {
	d := loadFixture(t, withSecondScene(newFixture()))

	s1, _ := d.Sample(tokS1)
	if diff := cmp.Diff([]Token{tokA1}, s1.AnnotationTokens); diff != "" {
		t.Errorf("S1 annotation group mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Token{tokD1}, s1.DataTokens); diff != "" {
		t.Errorf("S1 data group mismatch (-want +got):\n%s", diff)
	}

	// A sample with no children still gets empty, non-nil groups.
	s3, ok := d.Sample(tokS3)
	if !ok {
		t.Fatal("Sample(tokS3) not found")
	}
	if s3.AnnotationTokens == nil || len(s3.AnnotationTokens) != 0 {
		t.Errorf("S3 annotation group = %v, want empty non-nil", s3.AnnotationTokens)
	}
	if s3.DataTokens == nil || len(s3.DataTokens) != 0 {
		t.Errorf("S3 data group = %v, want empty non-nil", s3.DataTokens)
	}
}

func TestChronologicalOrders(t *testing.T) {
	d := loadFixture(t, withSecondScene(newFixture()))

	samples := d.SamplesChrono()
	gotSamples := make([]Token, len(samples))
	for i, s := range samples {
		gotSamples[i] = s.Token
	}
	if diff := cmp.Diff([]Token{tokS3, tokS1, tokS2}, gotSamples); diff != "" {
		t.Errorf("SamplesChrono mismatch (-want +got):\n%s", diff)
	}

	poses := d.EgoPosesChrono()
	gotPoses := make([]Token, len(poses))
	for i, p := range poses {
		gotPoses[i] = p.Token
	}
	if diff := cmp.Diff([]Token{tokEgo1, tokEgo2}, gotPoses); diff != "" {
		t.Errorf("EgoPosesChrono mismatch (-want +got):\n%s", diff)
	}

	data := d.SampleDatasChrono()
	gotData := make([]Token, len(data))
	for i, sd := range data {
		gotData[i] = sd.Token
	}
	if diff := cmp.Diff([]Token{tokD1, tokD2}, gotData); diff != "" {
		t.Errorf("SampleDatasChrono mismatch (-want +got):\n%s", diff)
	}
}

func TestScenesChronoByEarliestSample(t *testing.T) {
	// scene-0002's only sample predates both samples of scene-0001.
	d := loadFixture(t, withSecondScene(newFixture()))

	scenes := d.ScenesChrono()
	got := make([]Token, len(scenes))
	for i, sc := range scenes {
		got[i] = sc.Token
	}
	if diff := cmp.Diff([]Token{tokScene2, tokScene}, got); diff != "" {
		t.Errorf("ScenesChrono mismatch (-want +got):\n%s", diff)
	}
}

func TestSortByTimeStableOnTies(t *testing.T) {
	// Equal timestamps fall back to bytewise token order.
	table := map[Token]EgoPose{
		tk(0x03): {Token: tk(0x03), Timestamp: ts(100)},
		tk(0x01): {Token: tk(0x01), Timestamp: ts(100)},
		tk(0x02): {Token: tk(0x02), Timestamp: ts(50)},
	}
	got := sortByTime(table, func(e EgoPose) time.Time { return e.Timestamp.Time })
	if diff := cmp.Diff([]Token{tk(0x02), tk(0x01), tk(0x03)}, got); diff != "" {
		t.Errorf("sortByTime mismatch (-want +got):\n%s", diff)
	}
}

func TestShardIndicesCoverAll(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 64} {
		seen := map[int]bool{}
		for _, shard := range shardIndices(n) {
			if len(shard) == 0 {
				t.Errorf("shardIndices(%d) produced an empty shard", n)
			}
			for _, i := range shard {
				if seen[i] {
					t.Errorf("shardIndices(%d) repeats index %d", n, i)
				}
				seen[i] = true
			}
		}
		if len(seen) != n {
			t.Errorf("shardIndices(%d) covered %d indices", n, len(seen))
		}
	}
}
