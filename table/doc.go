/*
Package table is depot's storage substrate: segmented vectors that grow
without relocating elements, type-erased component columns, archetype tables
with swap-erase and delayed-gap compaction, and a sharded generational slot
map handing out stable bit-packed handles.

The package is consumed by the depot registry; hosts normally interact with
it only through accessors and the exported Table inspection methods.
*/
package table
