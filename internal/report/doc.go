// Package report renders trend and transition results as charts.
//
// Responsibilities:
//   - Interactive HTML pages (go-echarts): the per-class area trend as a
//     line chart and the largest transitions as a bar chart.
//   - Static PNG trend chart (gonum/plot) for files and the CLI.
//
// Classes are drawn in their palette colours and named by their display
// names so every chart matches the exported rasters.
//
// Dependency rule: report depends on trend, change and classify for data
// and never computes statistics itself.
package report
