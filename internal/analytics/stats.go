package analytics

import (
	"math"
	"sort"

	"github.com/QTest-hq/apimap/pkg/model"
)

const (
	topPairs      = 10
	mostConnected = 5
)

// Summarize rolls the per-endpoint analytics up into project statistics.
// Endpoints without analytics only count toward the totals.
func Summarize(endpoints []*model.Endpoint) model.Stats {
	s := model.NewStats()
	s.TotalEndpoints = len(endpoints)

	var secSum, cxSum, docSum, healthSum, nameSum float64
	analyzed := 0
	hosts := map[string]bool{}
	pairs := map[[2]string]model.SimilarityPair{}
	var connected []model.ConnectedEndpoint

	for _, ep := range endpoints {
		s.ByMethod[ep.Method]++
		s.ByFramework[string(ep.Framework)]++
		s.ByAuthType[string(ep.AuthType())]++

		a := ep.Analytics
		if a == nil {
			continue
		}
		analyzed++

		sec := a.Security
		secSum += float64(sec.Score)
		for _, i := range sec.Issues {
			s.Security.IssuesBySeverity[string(i.Severity)]++
			s.Security.IssuesByType[i.Type]++
		}
		if len(sec.Issues) > 0 {
			s.Security.EndpointsWithIssues++
		}
		if !sec.HasAuth {
			s.Security.WithoutAuth++
		}
		if !sec.HasRateLimit {
			s.Security.WithoutRateLimit++
		}
		if !sec.HasInputValidation {
			s.Security.WithoutValidation++
		}

		cx := a.Complexity.Score
		cxSum += float64(cx)
		switch {
		case cx >= 7:
			s.Complexity.High++
		case cx >= 4:
			s.Complexity.Medium++
		default:
			s.Complexity.Low++
		}

		doc := a.Documentation.Score
		docSum += float64(doc)
		switch doc {
		case 100:
			s.Documentation.FullyDocumented++
		case 0:
			s.Documentation.Undocumented++
		}

		perf := a.Performance
		s.Performance.Latency[string(perf.Latency)]++
		if perf.HasCaching {
			s.Performance.WithCaching++
		}
		if perf.HasPagination {
			s.Performance.WithPagination++
		}
		if perf.HasCompression {
			s.Performance.WithCompression++
		}

		h := a.HealthScore
		healthSum += float64(h)
		switch {
		case h >= 80:
			s.Health.Excellent++
		case h >= 60:
			s.Health.Good++
		case h >= 40:
			s.Health.Fair++
		default:
			s.Health.Poor++
		}

		n := a.Naming
		nameSum += float64(n.Score)
		switch {
		case n.Score == 100:
			s.Naming.Clean++
		case n.Score >= 80:
			s.Naming.Minor++
		default:
			s.Naming.Major++
		}
		for _, i := range n.Issues {
			s.Naming.IssueCount[i]++
		}

		c := a.Consistency
		s.Consistency.ResponseFormats[c.ResponseFormat]++
		s.Consistency.ErrorHandling[c.ErrorHandling]++
		s.Consistency.Versioning[c.VersioningStyle]++

		if a.Similarity.PotentialDuplicate {
			s.Similarity.PotentialDuplicates++
		}
		for _, m := range a.Similarity.TopMatches {
			x, y := ep.String(), m.Method+" "+m.Path
			if y < x {
				x, y = y, x
			}
			pairs[[2]string{x, y}] = model.SimilarityPair{A: x, B: y, Score: m.Score}
		}

		d := a.Dependencies
		s.Dependencies.InternalCalls += len(d.CallsEndpoints)
		for _, h := range d.ExternalAPIs {
			hosts[h] = true
		}
		if deg := len(d.CallsEndpoints) + len(d.CalledByEndpoints); deg > 0 {
			connected = append(connected, model.ConnectedEndpoint{Endpoint: ep.String(), Connections: deg})
		}
	}

	if analyzed > 0 {
		n := float64(analyzed)
		s.Security.AverageScore = round1(secSum / n)
		s.Complexity.Average = round1(cxSum / n)
		s.Documentation.Average = round1(docSum / n)
		s.Health.Average = round1(healthSum / n)
		s.Naming.Average = round1(nameSum / n)
	}

	for _, p := range pairs {
		s.Similarity.TopPairs = append(s.Similarity.TopPairs, p)
	}
	sort.Slice(s.Similarity.TopPairs, func(i, j int) bool {
		a, b := s.Similarity.TopPairs[i], s.Similarity.TopPairs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.A != b.A {
			return a.A < b.A
		}
		return a.B < b.B
	})
	if len(s.Similarity.TopPairs) > topPairs {
		s.Similarity.TopPairs = s.Similarity.TopPairs[:topPairs]
	}

	for h := range hosts {
		s.Dependencies.ExternalAPIs = append(s.Dependencies.ExternalAPIs, h)
	}
	sort.Strings(s.Dependencies.ExternalAPIs)

	sort.SliceStable(connected, func(i, j int) bool {
		if connected[i].Connections != connected[j].Connections {
			return connected[i].Connections > connected[j].Connections
		}
		return connected[i].Endpoint < connected[j].Endpoint
	})
	if len(connected) > mostConnected {
		connected = connected[:mostConnected]
	}
	s.Dependencies.MostConnected = append(s.Dependencies.MostConnected, connected...)

	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
