package sqlinline

const QInsertAsset = `--sql c9a9b495-5ec0-45b3-b53d-40393b76e095
insert into assets (
  id,
  user_id,
  project_id,
  kind,
  bucket,
  storage_path,
  mime,
  bytes,
  width,
  height,
  source_asset_id,
  mode,
  prompt_audit
)
values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::bigint,
  $9::int,
  $10::int,
  nullif($11::text, '')::uuid,
  nullif($12::text, ''),
  $13::jsonb
)
returning created_at;
`

const QSelectAssetByID = `--sql d1607356-a275-4c36-9c8a-e4a59e58c791
select
  id::text,
  user_id,
  project_id,
  kind,
  bucket,
  storage_path,
  mime,
  bytes,
  width,
  height,
  coalesce(source_asset_id::text, ''),
  coalesce(mode, ''),
  prompt_audit,
  created_at
from assets
where id = $1::uuid
limit 1;
`
