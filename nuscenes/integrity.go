package nuscenes

import (
	"sort"

	"golang.org/x/sync/errgroup"
)

// checkIntegrity proves that every foreign key resolves and that the
// prev/next fields of each chained table are mutually consistent. The rule
// groups are independent of each other, so they run concurrently; the
// first failure aborts.
func checkIntegrity(raw *rawTables) error {
	var g errgroup.Group
	g.Go(func() error { return checkCalibratedSensors(raw) })
	g.Go(func() error { return checkMaps(raw) })
	g.Go(func() error { return checkInstances(raw) })
	g.Go(func() error { return checkScenes(raw) })
	g.Go(func() error { return checkSamples(raw) })
	g.Go(func() error { return checkSampleAnnotations(raw) })
	g.Go(func() error { return checkSampleData(raw) })
	g.Go(func() error {
		prev, next := chainEdges(raw.sample)
		return checkChainSymmetry("sample", prev, next)
	})
	g.Go(func() error {
		prev, next := chainEdges(raw.sampleAnnotation)
		return checkChainSymmetry("sample_annotation", prev, next)
	})
	g.Go(func() error {
		prev, next := chainEdges(raw.sampleData)
		return checkChainSymmetry("sample_data", prev, next)
	})
	return g.Wait()
}

func checkCalibratedSensors(raw *rawTables) error {
	for _, cs := range raw.calibratedSensor {
		if _, ok := raw.sensor[cs.SensorToken]; !ok {
			return corruptedf("the token %s does not refer to any sensor", cs.SensorToken)
		}
	}
	return nil
}

func checkMaps(raw *rawTables) error {
	for _, m := range raw.mapRecords {
		for _, tok := range m.LogTokens {
			if _, ok := raw.log[tok]; !ok {
				return corruptedf("the token %s does not refer to any log", tok)
			}
		}
	}
	return nil
}

func checkInstances(raw *rawTables) error {
	for _, inst := range raw.instance {
		if _, ok := raw.sampleAnnotation[inst.FirstAnnotationToken]; !ok {
			return corruptedf("the token %s does not refer to any sample annotation", inst.FirstAnnotationToken)
		}
		if _, ok := raw.sampleAnnotation[inst.LastAnnotationToken]; !ok {
			return corruptedf("the token %s does not refer to any sample annotation", inst.LastAnnotationToken)
		}
		if _, ok := raw.category[inst.CategoryToken]; !ok {
			return corruptedf("the token %s does not refer to any category", inst.CategoryToken)
		}
	}
	return nil
}

func checkScenes(raw *rawTables) error {
	for _, sc := range raw.scene {
		if _, ok := raw.log[sc.LogToken]; !ok {
			return corruptedf("the token %s does not refer to any log", sc.LogToken)
		}
		if _, ok := raw.sample[sc.FirstSampleToken]; !ok {
			return corruptedf("the token %s does not refer to any sample", sc.FirstSampleToken)
		}
		if _, ok := raw.sample[sc.LastSampleToken]; !ok {
			return corruptedf("the token %s does not refer to any sample", sc.LastSampleToken)
		}
	}
	return nil
}

func checkSamples(raw *rawTables) error {
	for _, s := range raw.sample {
		if _, ok := raw.scene[s.SceneToken]; !ok {
			return corruptedf("the token %s does not refer to any scene", s.SceneToken)
		}
		if s.Prev.Valid {
			if _, ok := raw.sample[s.Prev.Token]; !ok {
				return corruptedf("the token %s does not refer to any sample", s.Prev.Token)
			}
		}
		if s.Next.Valid {
			if _, ok := raw.sample[s.Next.Token]; !ok {
				return corruptedf("the token %s does not refer to any sample", s.Next.Token)
			}
		}
	}
	return nil
}

func checkSampleAnnotations(raw *rawTables) error {
	for _, sa := range raw.sampleAnnotation {
		if _, ok := raw.sample[sa.SampleToken]; !ok {
			return corruptedf("the token %s does not refer to any sample", sa.SampleToken)
		}
		if _, ok := raw.instance[sa.InstanceToken]; !ok {
			return corruptedf("the token %s does not refer to any instance", sa.InstanceToken)
		}
		for _, tok := range sa.AttributeTokens {
			if _, ok := raw.attribute[tok]; !ok {
				return corruptedf("the token %s does not refer to any attribute", tok)
			}
		}
		if sa.VisibilityToken.Valid {
			if _, ok := raw.visibility[sa.VisibilityToken.Token]; !ok {
				return corruptedf("the token %s does not refer to any visibility", sa.VisibilityToken.Token)
			}
		}
		if sa.Prev.Valid {
			if _, ok := raw.sampleAnnotation[sa.Prev.Token]; !ok {
				return corruptedf("the token %s does not refer to any sample annotation", sa.Prev.Token)
			}
		}
		if sa.Next.Valid {
			if _, ok := raw.sampleAnnotation[sa.Next.Token]; !ok {
				return corruptedf("the token %s does not refer to any sample annotation", sa.Next.Token)
			}
		}
	}
	return nil
}

func checkSampleData(raw *rawTables) error {
	for _, sd := range raw.sampleData {
		if _, ok := raw.sample[sd.SampleToken]; !ok {
			return corruptedf("the token %s does not refer to any sample", sd.SampleToken)
		}
		if _, ok := raw.egoPose[sd.EgoPoseToken]; !ok {
			return corruptedf("the token %s does not refer to any ego pose", sd.EgoPoseToken)
		}
		if _, ok := raw.calibratedSensor[sd.CalibratedSensorToken]; !ok {
			return corruptedf("the token %s does not refer to any calibrated sensor", sd.CalibratedSensorToken)
		}
		if sd.Prev.Valid {
			if _, ok := raw.sampleData[sd.Prev.Token]; !ok {
				return corruptedf("the token %s does not refer to any sample data", sd.Prev.Token)
			}
		}
		if sd.Next.Valid {
			if _, ok := raw.sampleData[sd.Next.Token]; !ok {
				return corruptedf("the token %s does not refer to any sample data", sd.Next.Token)
			}
		}
	}
	return nil
}

// chainEdge is one declared predecessor→successor link.
type chainEdge struct {
	from, to Token
}

// chained is any record kind whose table forms doubly-linked lists.
type chained interface {
	chain() (this Token, prev, next OptionalToken)
}

// chainEdges collects the edge set implied by every record's prev field
// and the edge set implied by every record's next field.
func chainEdges[T chained](table map[Token]T) (prevEdges, nextEdges []chainEdge) {
	for _, rec := range table {
		this, prev, next := rec.chain()
		if prev.Valid {
			prevEdges = append(prevEdges, chainEdge{from: prev.Token, to: this})
		}
		if next.Valid {
			nextEdges = append(nextEdges, chainEdge{from: this, to: next.Token})
		}
	}
	return prevEdges, nextEdges
}

// checkChainSymmetry proves the prev and next fields of one table are
// mutually consistent: the two declared edge sets must be identical. This
// covers the whole table in one sorted comparison, with no sequential
// pointer walk: a record whose prev is not mirrored by its predecessor's
// next (or vice versa), or two records claiming the same predecessor,
// always produce differing edge sets.
func checkChainSymmetry(table string, prevEdges, nextEdges []chainEdge) error {
	sortEdges(prevEdges)
	sortEdges(nextEdges)
	n := len(prevEdges)
	if len(nextEdges) < n {
		n = len(nextEdges)
	}
	for i := 0; i < n; i++ {
		if prevEdges[i] != nextEdges[i] {
			return corruptedf("%s chain is asymmetric: prev fields declare the link %s -> %s where next fields declare %s -> %s",
				table, prevEdges[i].from, prevEdges[i].to, nextEdges[i].from, nextEdges[i].to)
		}
	}
	if len(prevEdges) != len(nextEdges) {
		if len(prevEdges) > n {
			e := prevEdges[n]
			return corruptedf("%s chain is asymmetric: the link %s -> %s is declared by a prev field but by no next field", table, e.from, e.to)
		}
		e := nextEdges[n]
		return corruptedf("%s chain is asymmetric: the link %s -> %s is declared by a next field but by no prev field", table, e.from, e.to)
	}
	return nil
}

func sortEdges(edges []chainEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if c := edges[i].from.Compare(edges[j].from); c != 0 {
			return c < 0
		}
		return edges[i].to.Compare(edges[j].to) < 0
	})
}
