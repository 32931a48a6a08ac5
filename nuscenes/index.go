package nuscenes

import (
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// buildDataset consumes the raw tables and produces the immutable arena:
// sample→child groupings, materialized instance and scene chains, and the
// four chronological token orders.
func buildDataset(version, dir string, raw *rawTables) (*Dataset, error) {
	annGroups, dataGroups := groupBySample(raw)

	if err := materializeInstances(raw); err != nil {
		return nil, err
	}
	if err := materializeScenes(raw); err != nil {
		return nil, err
	}

	// Attach the groupings. Every sample was seeded into both grouping
	// maps, so a missing entry can only be an indexer defect.
	for tok, s := range raw.sample {
		anns, ok := annGroups[tok]
		if !ok {
			return nil, fmt.Errorf("%w: sample %s has no annotation grouping entry", ErrInternalBug, tok)
		}
		data, ok := dataGroups[tok]
		if !ok {
			return nil, fmt.Errorf("%w: sample %s has no sample_data grouping entry", ErrInternalBug, tok)
		}
		s.AnnotationTokens = anns
		s.DataTokens = data
		raw.sample[tok] = s
	}

	d := &Dataset{
		version:          version,
		dir:              dir,
		attribute:        toPtrMap(raw.attribute),
		calibratedSensor: toPtrMap(raw.calibratedSensor),
		category:         toPtrMap(raw.category),
		egoPose:          toPtrMap(raw.egoPose),
		instance:         toPtrMap(raw.instance),
		log:              toPtrMap(raw.log),
		mapRecords:       toPtrMap(raw.mapRecords),
		sample:           toPtrMap(raw.sample),
		sampleAnnotation: toPtrMap(raw.sampleAnnotation),
		sampleData:       toPtrMap(raw.sampleData),
		scene:            toPtrMap(raw.scene),
		sensor:           toPtrMap(raw.sensor),
		visibility:       make(map[VisibilityToken]*Visibility, len(raw.visibility)),
	}
	for tok, v := range raw.visibility {
		v := v
		d.visibility[tok] = &v
	}

	d.egoPosesChrono = sortByTime(raw.egoPose, func(e EgoPose) time.Time { return e.Timestamp.Time })
	d.samplesChrono = sortByTime(raw.sample, func(s Sample) time.Time { return s.Timestamp.Time })
	d.sampleDataChrono = sortByTime(raw.sampleData, func(s SampleData) time.Time { return s.Timestamp.Time })

	scenesChrono, err := sortScenesByTime(raw)
	if err != nil {
		return nil, err
	}
	d.scenesChrono = scenesChrono

	return d, nil
}

// groupBySample maps every sample token to the tokens of its annotations
// and its sensor payloads. Every sample gets an entry, including samples
// with no children; order within a group is not meaningful.
func groupBySample(raw *rawTables) (annGroups, dataGroups map[Token][]Token) {
	annGroups = make(map[Token][]Token, len(raw.sample))
	dataGroups = make(map[Token][]Token, len(raw.sample))
	for tok := range raw.sample {
		annGroups[tok] = []Token{}
		dataGroups[tok] = []Token{}
	}
	for tok, sa := range raw.sampleAnnotation {
		annGroups[sa.SampleToken] = append(annGroups[sa.SampleToken], tok)
	}
	for tok, sd := range raw.sampleData {
		dataGroups[sd.SampleToken] = append(dataGroups[sd.SampleToken], tok)
	}
	return annGroups, dataGroups
}

// materializeInstances walks every instance's annotation chain from its
// declared head and verifies the declared length and tail. Instances are
// independent, so the walks are sharded across goroutines; each chain
// itself is inherently sequential.
func materializeInstances(raw *rawTables) error {
	tokens := mapTokens(raw.instance)
	materialized := make([][]Token, len(tokens))

	var g errgroup.Group
	for _, shard := range shardIndices(len(tokens)) {
		shard := shard
		g.Go(func() error {
			for _, i := range shard {
				inst := raw.instance[tokens[i]]
				chain, err := walkAnnotationChain(inst, raw.sampleAnnotation)
				if err != nil {
					return err
				}
				materialized[i] = chain
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, tok := range tokens {
		inst := raw.instance[tok]
		inst.AnnotationTokens = materialized[i]
		raw.instance[tok] = inst
	}
	return nil
}

func walkAnnotationChain(inst Instance, table map[Token]SampleAnnotation) ([]Token, error) {
	chain := make([]Token, 0, inst.NbrAnnotations)
	cur := Some(inst.FirstAnnotationToken)
	for cur.Valid {
		ann, ok := table[cur.Token]
		if !ok {
			return nil, corruptedf("the annotation chain of instance %s references missing sample annotation %s", inst.Token, cur.Token)
		}
		chain = append(chain, cur.Token)
		if len(chain) > len(table) {
			return nil, corruptedf("the annotation chain of instance %s does not terminate", inst.Token)
		}
		cur = ann.Next
	}
	if len(chain) != inst.NbrAnnotations {
		return nil, corruptedf("the instance %s declares nbr_annotations = %d, but its chain has %d", inst.Token, inst.NbrAnnotations, len(chain))
	}
	if last := chain[len(chain)-1]; last != inst.LastAnnotationToken {
		return nil, corruptedf("the instance %s declares last_annotation_token = %s, but its chain ends at %s", inst.Token, inst.LastAnnotationToken, last)
	}
	return chain, nil
}

// materializeScenes is materializeInstances for scene→sample chains.
func materializeScenes(raw *rawTables) error {
	tokens := mapTokens(raw.scene)
	materialized := make([][]Token, len(tokens))

	var g errgroup.Group
	for _, shard := range shardIndices(len(tokens)) {
		shard := shard
		g.Go(func() error {
			for _, i := range shard {
				sc := raw.scene[tokens[i]]
				chain, err := walkSampleChain(sc, raw.sample)
				if err != nil {
					return err
				}
				materialized[i] = chain
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, tok := range tokens {
		sc := raw.scene[tok]
		sc.SampleTokens = materialized[i]
		raw.scene[tok] = sc
	}
	return nil
}

func walkSampleChain(sc Scene, table map[Token]Sample) ([]Token, error) {
	chain := make([]Token, 0, sc.NbrSamples)
	cur := Some(sc.FirstSampleToken)
	for cur.Valid {
		s, ok := table[cur.Token]
		if !ok {
			return nil, corruptedf("the sample chain of scene %s references missing sample %s", sc.Token, cur.Token)
		}
		chain = append(chain, cur.Token)
		if len(chain) > len(table) {
			return nil, corruptedf("the sample chain of scene %s does not terminate", sc.Token)
		}
		cur = s.Next
	}
	if len(chain) != sc.NbrSamples {
		return nil, corruptedf("the scene %s declares nbr_samples = %d, but its chain has %d", sc.Token, sc.NbrSamples, len(chain))
	}
	if last := chain[len(chain)-1]; last != sc.LastSampleToken {
		return nil, corruptedf("the scene %s declares last_sample_token = %s, but its chain ends at %s", sc.Token, sc.LastSampleToken, last)
	}
	return chain, nil
}

// sortByTime returns the table's tokens ordered by ascending timestamp.
// The sort is stable on the timestamp alone, so ties keep the (already
// deterministic) bytewise token pre-order.
func sortByTime[T any](table map[Token]T, stamp func(T) time.Time) []Token {
	type pair struct {
		tok Token
		ts  time.Time
	}
	pairs := make([]pair, 0, len(table))
	for tok, rec := range table {
		pairs = append(pairs, pair{tok: tok, ts: stamp(rec)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].tok.Compare(pairs[j].tok) < 0 })
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].ts.Before(pairs[j].ts) })

	tokens := make([]Token, len(pairs))
	for i, p := range pairs {
		tokens[i] = p.tok
	}
	return tokens
}

// sortScenesByTime orders scenes by the earliest timestamp among their
// materialized samples. Chains are non-empty by construction, so an empty
// one here is an indexer defect.
func sortScenesByTime(raw *rawTables) ([]Token, error) {
	stamps := make(map[Token]time.Time, len(raw.scene))
	for tok, sc := range raw.scene {
		if len(sc.SampleTokens) == 0 {
			return nil, fmt.Errorf("%w: scene %s has an empty materialized chain", ErrInternalBug, tok)
		}
		var min time.Time
		for i, sampleTok := range sc.SampleTokens {
			s, ok := raw.sample[sampleTok]
			if !ok {
				return nil, fmt.Errorf("%w: scene %s chain references unknown sample %s", ErrInternalBug, tok, sampleTok)
			}
			if i == 0 || s.Timestamp.Before(min) {
				min = s.Timestamp.Time
			}
		}
		stamps[tok] = min
	}
	return sortByTime(raw.scene, func(sc Scene) time.Time { return stamps[sc.Token] }), nil
}

func mapTokens[T any](table map[Token]T) []Token {
	tokens := make([]Token, 0, len(table))
	for tok := range table {
		tokens = append(tokens, tok)
	}
	return tokens
}

// shardIndices splits [0,n) into up to GOMAXPROCS contiguous shards.
func shardIndices(n int) [][]int {
	if n == 0 {
		return nil
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers
	shards := make([][]int, 0, workers)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		shard := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			shard = append(shard, i)
		}
		shards = append(shards, shard)
	}
	return shards
}

func toPtrMap[T any](table map[Token]T) map[Token]*T {
	out := make(map[Token]*T, len(table))
	for tok, rec := range table {
		rec := rec
		out[tok] = &rec
	}
	return out
}
